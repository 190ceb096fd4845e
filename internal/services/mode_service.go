package services

import (
	"strings"
	"time"

	"github.com/quorumhq/quorum/internal/models"
)

// RestrictedModeConfirmation must be supplied verbatim to activate restricted
// mode. The transition is one-way and destroys all collected data.
const RestrictedModeConfirmation = "ACTIVATE RESTRICTED MODE"

type ModeStore interface {
	GetSystemMode() (*models.SystemMode, error)
	// WipeAndRestrict deletes all submissions, resets every invitation's
	// completion, consent, code, expiry and attempt counter, and flips the
	// mode record, all within one transaction.
	WipeAndRestrict(actor string, at time.Time) error
	AddAudit(entry models.AuditEntry)
}

type ModeService struct {
	store ModeStore
	now   func() time.Time
}

func NewModeService(store ModeStore) *ModeService {
	return &ModeService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// ActivateRestrictedMode performs the one-way transition. A second invocation
// while already restricted is rejected so data cannot be wiped twice by
// accident.
func (s *ModeService) ActivateRestrictedMode(actor, confirmation string) error {
	if strings.TrimSpace(actor) == "" {
		return NewInvalidError("actor required")
	}
	if confirmation != RestrictedModeConfirmation {
		return NewInvalidError("confirmation phrase does not match")
	}
	mode, err := s.store.GetSystemMode()
	if err != nil {
		return err
	}
	if mode != nil && mode.Restricted {
		return NewConflictError("already restricted")
	}
	now := s.now()
	if err := s.store.WipeAndRestrict(actor, now); err != nil {
		return err
	}
	s.store.AddAudit(models.AuditEntry{Time: now, Actor: actor, Action: "restricted_mode_activated"})
	return nil
}

// Mode returns the current system mode record.
func (s *ModeService) Mode() (*models.SystemMode, error) {
	return s.store.GetSystemMode()
}
