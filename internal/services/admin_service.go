package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quorumhq/quorum/internal/models"
)

type AdminStore interface {
	FindAdminByEmail(email string) (*models.Administrator, error)
	UpdateAdminLastLogin(email string, at time.Time) error
	GetInvitation(email string) (*models.Invitation, error)
	AddInvitation(inv *models.Invitation) error
	ListInvitations() ([]*models.Invitation, error)
	SetInvitationBlocked(email string, blocked bool, reason, actor string, at time.Time) error
	AddAudit(entry models.AuditEntry)
	ListAudit(limit int) ([]models.AuditEntry, error)
}

// AdminTokenSigner wraps an administrator identity into a signed session token.
type AdminTokenSigner func(email, role string, ttl time.Duration) (string, error)

// AdminTokenTTL is the administrative session lifetime.
const AdminTokenTTL = 24 * time.Hour

type AdminService struct {
	store     AdminStore
	signToken AdminTokenSigner
	now       func() time.Time
}

type AdminSession struct {
	Token string
	Name  string
	Role  string
}

func NewAdminService(store AdminStore, signer AdminTokenSigner) *AdminService {
	return &AdminService{
		store:     store,
		signToken: signer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *AdminService) Login(email, password string) (*AdminSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	a, err := s.store.FindAdminByEmail(email)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(a.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := s.store.UpdateAdminLastLogin(email, s.now()); err != nil {
		return nil, err
	}
	token, err := s.signToken(email, a.Role, AdminTokenTTL)
	if err != nil {
		return nil, NewInternalError("could not sign session token")
	}
	return &AdminSession{Token: token, Name: a.Name, Role: a.Role}, nil
}

func (s *AdminService) CreateInvitation(actor, email string, group models.StakeholderGroup) (*models.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, NewInvalidError("valid email required")
	}
	if !models.ValidGroup(group) {
		return nil, NewInvalidError("unknown stakeholder group")
	}
	if a, err := s.store.FindAdminByEmail(email); err != nil {
		return nil, err
	} else if a != nil {
		return nil, NewConflictError("administrators cannot be invited")
	}
	if existing, err := s.store.GetInvitation(email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, NewConflictError("invitation exists")
	}
	now := s.now()
	inv := &models.Invitation{Email: email, Group: group, CreatedAt: now, UpdatedAt: now}
	if err := s.store.AddInvitation(inv); err != nil {
		return nil, err
	}
	s.store.AddAudit(models.AuditEntry{Time: now, Actor: actor, Action: "invitation_created", Target: email, Note: string(group)})
	return inv, nil
}

func (s *AdminService) ListInvitations() ([]*models.Invitation, error) {
	return s.store.ListInvitations()
}

func (s *AdminService) BlockInvitation(actor, email, reason string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return NewInvalidError("email required")
	}
	if strings.TrimSpace(reason) == "" {
		return NewInvalidError("reason required")
	}
	inv, err := s.store.GetInvitation(email)
	if err != nil {
		return err
	}
	if inv == nil {
		return NewNotFoundError("invitation not found")
	}
	now := s.now()
	if err := s.store.SetInvitationBlocked(email, true, reason, actor, now); err != nil {
		return err
	}
	s.store.AddAudit(models.AuditEntry{Time: now, Actor: actor, Action: "invitation_blocked", Target: email, Note: reason})
	return nil
}

func (s *AdminService) UnblockInvitation(actor, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return NewInvalidError("email required")
	}
	inv, err := s.store.GetInvitation(email)
	if err != nil {
		return err
	}
	if inv == nil {
		return NewNotFoundError("invitation not found")
	}
	now := s.now()
	if err := s.store.SetInvitationBlocked(email, false, "", actor, now); err != nil {
		return err
	}
	s.store.AddAudit(models.AuditEntry{Time: now, Actor: actor, Action: "invitation_unblocked", Target: email})
	return nil
}

// RecentAudit returns the newest audit entries, most recent first.
func (s *AdminService) RecentAudit(limit int) ([]models.AuditEntry, error) {
	return s.store.ListAudit(limit)
}
