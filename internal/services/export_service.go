package services

import (
	"time"

	"github.com/quorumhq/quorum/internal/models"
)

type ExportStore interface {
	ListSubmissions() ([]*models.Submission, error)
	AddAudit(entry models.AuditEntry)
}

type ExportParams struct {
	Format string // long or wide
	Group  string // optional stakeholder-group filter
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders anonymized submissions as CSV. Emails never appear in
// exports; every participant is identified by a stable pseudonymous token.
type ExportService struct {
	store ExportStore
	salt  string
	now   func() time.Time
}

func NewExportService(store ExportStore, salt string) *ExportService {
	return &ExportService{
		store: store,
		salt:  salt,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *ExportService) ExportCSV(actor string, params ExportParams) (*ExportResult, error) {
	format := params.Format
	if format == "" {
		format = "long"
	}
	if params.Group != "" && !models.ValidGroup(models.StakeholderGroup(params.Group)) {
		return nil, NewInvalidError("unknown stakeholder group")
	}
	subs, err := s.store.ListSubmissions()
	if err != nil {
		return nil, err
	}
	if params.Group != "" {
		filtered := subs[:0]
		for _, sub := range subs {
			if string(sub.Group) == params.Group {
				filtered = append(filtered, sub)
			}
		}
		subs = filtered
	}

	var res *ExportResult
	switch format {
	case "long":
		rows := make([]LongRow, 0, len(subs))
		for _, sub := range subs {
			token := Anonymize(sub.Email, s.salt)
			for _, a := range sub.Answers {
				rows = append(rows, LongRow{
					ParticipantToken: token,
					Group:            string(sub.Group),
					QuestionID:       a.QuestionID,
					Value:            a.Value,
					SubmittedAt:      sub.SubmittedAt.Format(time.RFC3339),
				})
			}
		}
		b, err := ExportLongCSV(rows)
		if err != nil {
			return nil, err
		}
		res = &ExportResult{Filename: "long.csv", ContentType: "text/csv; charset=utf-8", Data: b}
	case "wide":
		mp := map[string]map[string]string{}
		for _, sub := range subs {
			token := Anonymize(sub.Email, s.salt)
			if mp[token] == nil {
				mp[token] = map[string]string{"group": string(sub.Group)}
			}
			for _, a := range sub.Answers {
				mp[token][a.QuestionID] = a.Value
			}
		}
		b, err := ExportWideCSV(mp)
		if err != nil {
			return nil, err
		}
		res = &ExportResult{Filename: "wide.csv", ContentType: "text/csv; charset=utf-8", Data: b}
	default:
		return nil, NewInvalidError("unsupported format")
	}
	s.store.AddAudit(models.AuditEntry{Time: s.now(), Actor: actor, Action: "export", Target: format, Note: params.Group})
	return res, nil
}
