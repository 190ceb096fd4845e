package services

import (
	"strings"
	"time"

	"github.com/quorumhq/quorum/internal/models"
)

type SubmissionStore interface {
	GetInvitation(email string) (*models.Invitation, error)
	ListQuestionsByGroup(group models.StakeholderGroup) ([]*models.Question, error)
	// AddSubmission persists the submission and marks the invitation
	// completed in one transaction.
	AddSubmission(sub *models.Submission) error
	ListSubmissions() ([]*models.Submission, error)
}

type SubmissionService struct {
	store  SubmissionStore
	policy *PolicyService
	now    func() time.Time
	idGen  func() string
}

func NewSubmissionService(store SubmissionStore, policy *PolicyService) *SubmissionService {
	return &SubmissionService{
		store:  store,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
		idGen:  func() string { return shortID(12) },
	}
}

// Submit records one completed survey for email. The invitation must exist,
// be unblocked, carry consent and not already be completed; answers are
// validated against the group's question set.
func (s *SubmissionService) Submit(email string, answers []models.Answer) (*models.Submission, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, NewInvalidError("email required")
	}
	if len(answers) == 0 {
		return nil, NewInvalidError("answers required")
	}
	dec, err := s.policy.CanAccessSurvey(email)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, NewUnauthorizedError(dec.Reason)
	}
	inv, err := s.store.GetInvitation(email)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, NewNotFoundError("no invitation for this email")
	}
	if inv.Blocked {
		return nil, NewUnauthorizedError("invitation blocked")
	}
	if !inv.Consented {
		return nil, NewForbiddenError("consent required before submitting")
	}
	if inv.Completed {
		return nil, NewConflictError("survey already completed")
	}
	qs, err := s.store.ListQuestionsByGroup(inv.Group)
	if err != nil {
		return nil, err
	}
	byID := map[string]*models.Question{}
	for _, q := range qs {
		byID[q.ID] = q
	}
	answered := map[string]bool{}
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return nil, NewInvalidError("unknown question: " + a.QuestionID)
		}
		if answered[a.QuestionID] {
			return nil, NewInvalidError("duplicate answer: " + a.QuestionID)
		}
		if strings.TrimSpace(a.Value) == "" {
			return nil, NewInvalidError("empty answer: " + a.QuestionID)
		}
		if q.Type == "choice" && !containsOption(q.Options, a.Value) {
			return nil, NewInvalidError("answer not among options: " + a.QuestionID)
		}
		answered[a.QuestionID] = true
	}
	for _, q := range qs {
		if q.Required && !answered[q.ID] {
			return nil, NewInvalidError("missing required answer: " + q.ID)
		}
	}
	sub := &models.Submission{
		ID:          s.idGen(),
		Email:       email,
		Group:       inv.Group,
		Answers:     answers,
		SubmittedAt: s.now(),
	}
	if err := s.store.AddSubmission(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func containsOption(opts []string, v string) bool {
	for _, o := range opts {
		if o == v {
			return true
		}
	}
	return false
}
