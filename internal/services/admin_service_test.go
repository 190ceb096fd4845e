package services

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quorumhq/quorum/internal/models"
)

type adminStubStore struct {
	admins      map[string]*models.Administrator
	invitations map[string]*models.Invitation
	audits      []models.AuditEntry
}

func newAdminStubStore() *adminStubStore {
	return &adminStubStore{
		admins:      map[string]*models.Administrator{},
		invitations: map[string]*models.Invitation{},
	}
}

func (s *adminStubStore) FindAdminByEmail(email string) (*models.Administrator, error) {
	if a, ok := s.admins[email]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (s *adminStubStore) UpdateAdminLastLogin(email string, at time.Time) error {
	a, ok := s.admins[email]
	if !ok {
		return errors.New("no such admin")
	}
	a.LastLoginAt = &at
	return nil
}

func (s *adminStubStore) GetInvitation(email string) (*models.Invitation, error) {
	if inv, ok := s.invitations[email]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, nil
}

func (s *adminStubStore) AddInvitation(inv *models.Invitation) error {
	if _, ok := s.invitations[inv.Email]; ok {
		return errors.New("duplicate invitation")
	}
	cp := *inv
	s.invitations[inv.Email] = &cp
	return nil
}

func (s *adminStubStore) ListInvitations() ([]*models.Invitation, error) {
	out := make([]*models.Invitation, 0, len(s.invitations))
	for _, inv := range s.invitations {
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}

func (s *adminStubStore) SetInvitationBlocked(email string, blocked bool, reason, actor string, at time.Time) error {
	inv, ok := s.invitations[email]
	if !ok {
		return errors.New("no such invitation")
	}
	inv.Blocked = blocked
	inv.BlockReason = reason
	inv.BlockedBy = actor
	if blocked {
		inv.BlockedAt = &at
	} else {
		inv.BlockedAt = nil
	}
	return nil
}

func (s *adminStubStore) AddAudit(entry models.AuditEntry) {
	s.audits = append(s.audits, entry)
}

func (s *adminStubStore) ListAudit(limit int) ([]models.AuditEntry, error) {
	out := append([]models.AuditEntry(nil), s.audits...)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func seedAdmin(t *testing.T, store *adminStubStore, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	store.admins[email] = &models.Administrator{Email: email, PassHash: hash, Name: "Ops", Role: "owner"}
}

func newTestAdminService(store *adminStubStore) *AdminService {
	svc := NewAdminService(store, func(email, role string, ttl time.Duration) (string, error) {
		return "token:" + email + ":" + role, nil
	})
	svc.now = fixedNow
	return svc
}

func TestAdminLogin(t *testing.T) {
	store := newAdminStubStore()
	seedAdmin(t, store, "ops@example.com", "Secret123")
	svc := newTestAdminService(store)

	session, err := svc.Login("ops@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if session.Token != "token:ops@example.com:owner" {
		t.Fatalf("unexpected token %q", session.Token)
	}
	if store.admins["ops@example.com"].LastLoginAt == nil {
		t.Fatalf("last login not recorded")
	}

	if _, err := svc.Login("ops@example.com", "wrong"); err == nil {
		t.Fatalf("expected error for wrong password")
	}
	if _, err := svc.Login("ghost@example.com", "Secret123"); err == nil {
		t.Fatalf("expected error for unknown admin")
	}
	if _, err := svc.Login("", ""); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestCreateInvitation(t *testing.T) {
	store := newAdminStubStore()
	seedAdmin(t, store, "ops@example.com", "Secret123")
	svc := newTestAdminService(store)

	inv, err := svc.CreateInvitation("ops@example.com", "Alice@Example.com", models.GroupEmployee)
	if err != nil {
		t.Fatalf("CreateInvitation returned error: %v", err)
	}
	if inv.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", inv.Email)
	}

	if _, err := svc.CreateInvitation("ops@example.com", "alice@example.com", models.GroupEmployee); err == nil {
		t.Fatalf("expected conflict for duplicate invitation")
	}
	if _, err := svc.CreateInvitation("ops@example.com", "ops@example.com", models.GroupEmployee); err == nil {
		t.Fatalf("administrators must not be invitable")
	}
	if _, err := svc.CreateInvitation("ops@example.com", "bob@example.com", "board"); err == nil {
		t.Fatalf("expected error for unknown group")
	}
	if _, err := svc.CreateInvitation("ops@example.com", "not-an-email", models.GroupEmployee); err == nil {
		t.Fatalf("expected error for malformed email")
	}
}

func TestBlockAndUnblockInvitation(t *testing.T) {
	store := newAdminStubStore()
	svc := newTestAdminService(store)
	store.invitations["alice@example.com"] = &models.Invitation{Email: "alice@example.com", Group: models.GroupPartner}

	if err := svc.BlockInvitation("ops@example.com", "alice@example.com", "duplicate identity"); err != nil {
		t.Fatalf("BlockInvitation returned error: %v", err)
	}
	inv := store.invitations["alice@example.com"]
	if !inv.Blocked || inv.BlockReason != "duplicate identity" || inv.BlockedBy != "ops@example.com" || inv.BlockedAt == nil {
		t.Fatalf("block state not recorded: %+v", inv)
	}

	if err := svc.BlockInvitation("ops@example.com", "alice@example.com", "  "); err == nil {
		t.Fatalf("expected error for empty reason")
	}
	if err := svc.BlockInvitation("ops@example.com", "ghost@example.com", "x"); err == nil {
		t.Fatalf("expected not found for unknown invitation")
	}

	if err := svc.UnblockInvitation("ops@example.com", "alice@example.com"); err != nil {
		t.Fatalf("UnblockInvitation returned error: %v", err)
	}
	if store.invitations["alice@example.com"].Blocked {
		t.Fatalf("invitation still blocked")
	}
}
