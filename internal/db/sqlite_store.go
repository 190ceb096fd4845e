package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/quorumhq/quorum/internal/models"
)

// SQLiteStore persists the survey state. It satisfies every per-service store
// interface declared in internal/services.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func int64ToBool(v int64) bool { return v != 0 }

func toNullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// --- administrators ---

func (s *SQLiteStore) FindAdminByEmail(email string) (*models.Administrator, error) {
	row := s.db.QueryRow(`SELECT email, pass_hash, name, role, last_login_at, created_at FROM admins WHERE email = ?`, email)
	var a models.Administrator
	var lastLogin sql.NullInt64
	var created int64
	if err := row.Scan(&a.Email, &a.PassHash, &a.Name, &a.Role, &lastLogin, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	a.LastLoginAt = fromNullTime(lastLogin)
	a.CreatedAt = time.Unix(created, 0).UTC()
	return &a, nil
}

func (s *SQLiteStore) AddAdmin(a *models.Administrator) error {
	_, err := s.db.Exec(`INSERT INTO admins (email, pass_hash, name, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.Email, a.PassHash, a.Name, a.Role, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateAdminLastLogin(email string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE admins SET last_login_at = ? WHERE email = ?`, at.Unix(), email)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	return nil
}

// --- invitations ---

const invitationCols = `email, grp, consented, completed, code, code_expires_at, attempts, blocked, block_reason, blocked_by, blocked_at, created_at, updated_at`

func scanInvitation(row interface{ Scan(...any) error }) (*models.Invitation, error) {
	var inv models.Invitation
	var grp string
	var consented, completed, blocked int64
	var code sql.NullString
	var codeExpires, blockedAt sql.NullInt64
	var created, updated int64
	if err := row.Scan(&inv.Email, &grp, &consented, &completed, &code, &codeExpires, &inv.Attempts,
		&blocked, &inv.BlockReason, &inv.BlockedBy, &blockedAt, &created, &updated); err != nil {
		return nil, err
	}
	inv.Group = models.StakeholderGroup(grp)
	inv.Consented = int64ToBool(consented)
	inv.Completed = int64ToBool(completed)
	inv.Code = fromNullString(code)
	inv.CodeExpiresAt = fromNullTime(codeExpires)
	inv.Blocked = int64ToBool(blocked)
	inv.BlockedAt = fromNullTime(blockedAt)
	inv.CreatedAt = time.Unix(created, 0).UTC()
	inv.UpdatedAt = time.Unix(updated, 0).UTC()
	return &inv, nil
}

func (s *SQLiteStore) GetInvitation(email string) (*models.Invitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE email = ?`, email)
	inv, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

func (s *SQLiteStore) AddInvitation(inv *models.Invitation) error {
	_, err := s.db.Exec(`INSERT INTO invitations (`+invitationCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Email, string(inv.Group), boolToInt64(inv.Consented), boolToInt64(inv.Completed),
		toNullString(inv.Code), toNullTime(inv.CodeExpiresAt), inv.Attempts,
		boolToInt64(inv.Blocked), inv.BlockReason, inv.BlockedBy, toNullTime(inv.BlockedAt),
		inv.CreatedAt.Unix(), inv.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("add invitation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListInvitations() ([]*models.Invitation, error) {
	rows, err := s.db.Query(`SELECT ` + invitationCols + ` FROM invitations ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()
	var out []*models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetInvitationCode(email, code string, expiresAt time.Time) error {
	res, err := s.db.Exec(`UPDATE invitations SET code = ?, code_expires_at = ?, attempts = 0, updated_at = ? WHERE email = ?`,
		code, expiresAt.Unix(), time.Now().UTC().Unix(), email)
	if err != nil {
		return fmt.Errorf("set invitation code: %w", err)
	}
	return requireRow(res, "set invitation code")
}

// IncrementAttempts bumps the failed-attempt counter in place so concurrent
// increments are not lost.
func (s *SQLiteStore) IncrementAttempts(email string) error {
	res, err := s.db.Exec(`UPDATE invitations SET attempts = attempts + 1, updated_at = ? WHERE email = ?`,
		time.Now().UTC().Unix(), email)
	if err != nil {
		return fmt.Errorf("increment attempts: %w", err)
	}
	return requireRow(res, "increment attempts")
}

// RedeemInvitationCode clears the code state and records consent in one
// statement, keeping the success path single-use.
func (s *SQLiteStore) RedeemInvitationCode(email string, consent bool) error {
	res, err := s.db.Exec(`UPDATE invitations SET code = NULL, code_expires_at = NULL, attempts = 0, consented = ?, updated_at = ? WHERE email = ?`,
		boolToInt64(consent), time.Now().UTC().Unix(), email)
	if err != nil {
		return fmt.Errorf("redeem invitation code: %w", err)
	}
	return requireRow(res, "redeem invitation code")
}

func (s *SQLiteStore) SetInvitationBlocked(email string, blocked bool, reason, actor string, at time.Time) error {
	var blockedAt sql.NullInt64
	if blocked {
		blockedAt = sql.NullInt64{Int64: at.Unix(), Valid: true}
	}
	res, err := s.db.Exec(`UPDATE invitations SET blocked = ?, block_reason = ?, blocked_by = ?, blocked_at = ?, updated_at = ? WHERE email = ?`,
		boolToInt64(blocked), reason, actor, blockedAt, at.Unix(), email)
	if err != nil {
		return fmt.Errorf("set invitation blocked: %w", err)
	}
	return requireRow(res, "set invitation blocked")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: no such invitation", op)
	}
	return nil
}

// --- system mode ---

func (s *SQLiteStore) GetSystemMode() (*models.SystemMode, error) {
	row := s.db.QueryRow(`SELECT restricted, activated_by, activated_at FROM system_mode WHERE id = 1`)
	var m models.SystemMode
	var restricted int64
	var activatedAt sql.NullInt64
	if err := row.Scan(&restricted, &m.ActivatedBy, &activatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.SystemMode{}, nil
		}
		return nil, fmt.Errorf("get system mode: %w", err)
	}
	m.Restricted = int64ToBool(restricted)
	m.ActivatedAt = fromNullTime(activatedAt)
	return &m, nil
}

// WipeAndRestrict performs the one-way restricted-mode transition: all
// submissions are deleted, every invitation is reset to its default state and
// the mode row is flipped, inside a single transaction so a failure leaves no
// half-applied state.
func (s *SQLiteStore) WipeAndRestrict(actor string, at time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("wipe and restrict: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.Exec(`DELETE FROM submissions`); err != nil {
		return fmt.Errorf("wipe and restrict: delete submissions: %w", err)
	}
	if _, err := tx.Exec(`UPDATE invitations SET completed = 0, consented = 0, code = NULL, code_expires_at = NULL, attempts = 0, updated_at = ?`, at.Unix()); err != nil {
		return fmt.Errorf("wipe and restrict: reset invitations: %w", err)
	}
	if _, err := tx.Exec(`UPDATE system_mode SET restricted = 1, activated_by = ?, activated_at = ? WHERE id = 1`, actor, at.Unix()); err != nil {
		return fmt.Errorf("wipe and restrict: flip mode: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("wipe and restrict: commit: %w", err)
	}
	return nil
}

// --- questions ---

func (s *SQLiteStore) AddQuestion(q *models.Question) error {
	groupsJSON, err := encodeJSON(q.Groups)
	if err != nil {
		return fmt.Errorf("add question: %w", err)
	}
	var optionsJSON sql.NullString
	if len(q.Options) > 0 {
		enc, err := encodeJSON(q.Options)
		if err != nil {
			return fmt.Errorf("add question: %w", err)
		}
		optionsJSON = sql.NullString{String: enc, Valid: true}
	}
	_, err = s.db.Exec(`INSERT INTO questions (id, groups_json, text, type, options_json, required, ord) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ID, groupsJSON, q.Text, q.Type, optionsJSON, boolToInt64(q.Required), q.Order)
	if err != nil {
		return fmt.Errorf("add question: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListQuestionsByGroup(group models.StakeholderGroup) ([]*models.Question, error) {
	rows, err := s.db.Query(`SELECT id, groups_json, text, type, options_json, required, ord FROM questions ORDER BY ord, id`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	var out []*models.Question
	for rows.Next() {
		var q models.Question
		var groupsJSON string
		var optionsJSON sql.NullString
		var required int64
		if err := rows.Scan(&q.ID, &groupsJSON, &q.Text, &q.Type, &optionsJSON, &required, &q.Order); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(groupsJSON), &q.Groups); err != nil {
			log.Printf("sqlite store: decode question groups: %v", err)
			continue
		}
		if optionsJSON.Valid && strings.TrimSpace(optionsJSON.String) != "" {
			if err := json.Unmarshal([]byte(optionsJSON.String), &q.Options); err != nil {
				log.Printf("sqlite store: decode question options: %v", err)
			}
		}
		q.Required = int64ToBool(required)
		for _, g := range q.Groups {
			if g == group {
				qc := q
				out = append(out, &qc)
				break
			}
		}
	}
	return out, rows.Err()
}

// --- submissions ---

func (s *SQLiteStore) AddSubmission(sub *models.Submission) error {
	answersJSON, err := encodeJSON(sub.Answers)
	if err != nil {
		return fmt.Errorf("add submission: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("add submission: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.Exec(`INSERT INTO submissions (id, email, grp, answers_json, submitted_at) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.Email, string(sub.Group), answersJSON, sub.SubmittedAt.Unix()); err != nil {
		return fmt.Errorf("add submission: %w", err)
	}
	if _, err := tx.Exec(`UPDATE invitations SET completed = 1, updated_at = ? WHERE email = ?`, sub.SubmittedAt.Unix(), sub.Email); err != nil {
		return fmt.Errorf("add submission: mark completed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add submission: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSubmissions() ([]*models.Submission, error) {
	rows, err := s.db.Query(`SELECT id, email, grp, answers_json, submitted_at FROM submissions ORDER BY submitted_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()
	var out []*models.Submission
	for rows.Next() {
		var sub models.Submission
		var grp, answersJSON string
		var submitted int64
		if err := rows.Scan(&sub.ID, &sub.Email, &grp, &answersJSON, &submitted); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.Group = models.StakeholderGroup(grp)
		sub.SubmittedAt = time.Unix(submitted, 0).UTC()
		if err := json.Unmarshal([]byte(answersJSON), &sub.Answers); err != nil {
			log.Printf("sqlite store: decode answers: %v", err)
			continue
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

// --- audit ---

func (s *SQLiteStore) AddAudit(entry models.AuditEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	if _, err := s.db.Exec(`INSERT INTO audit_log (at, actor, action, target, note) VALUES (?, ?, ?, ?, ?)`,
		entry.Time.Unix(), entry.Actor, entry.Action, entry.Target, entry.Note); err != nil {
		log.Printf("sqlite store: add audit: %v", err)
	}
}

func (s *SQLiteStore) ListAudit(limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT at, actor, action, target, note FROM audit_log ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()
	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var at int64
		if err := rows.Scan(&at, &e.Actor, &e.Action, &e.Target, &e.Note); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Time = time.Unix(at, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
