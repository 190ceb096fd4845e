package services

import (
	"strings"

	"github.com/quorumhq/quorum/internal/models"
)

const DefaultTestDomainSuffix = "@test.quorum.local"

type PolicyStore interface {
	FindAdminByEmail(email string) (*models.Administrator, error)
	GetSystemMode() (*models.SystemMode, error)
}

// Decision is an access-policy verdict. Reason is set only when denied.
type Decision struct {
	Allowed bool
	Reason  string
}

// PolicyService decides whether an email may receive or redeem a passcode and
// submit a survey. The check order matters: administrator exclusion is
// unconditional and independent of system mode.
type PolicyService struct {
	store      PolicyStore
	testSuffix string
}

func NewPolicyService(store PolicyStore, testSuffix string) *PolicyService {
	if testSuffix == "" {
		testSuffix = DefaultTestDomainSuffix
	}
	return &PolicyService{store: store, testSuffix: testSuffix}
}

func (s *PolicyService) CanAccessSurvey(email string) (Decision, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Decision{}, NewInvalidError("email required")
	}
	admin, err := s.store.FindAdminByEmail(email)
	if err != nil {
		return Decision{}, err
	}
	if admin != nil {
		return Decision{Reason: "administrators cannot participate; use an alternate identity"}, nil
	}
	mode, err := s.store.GetSystemMode()
	if err != nil {
		return Decision{}, err
	}
	if mode != nil && mode.Restricted && strings.HasSuffix(email, s.testSuffix) {
		return Decision{Reason: "test accounts disabled"}, nil
	}
	return Decision{Allowed: true}, nil
}
