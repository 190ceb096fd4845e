package services

import (
	"context"
	"strings"
	"time"

	"github.com/quorumhq/quorum/internal/models"
)

const (
	// CodeTTL bounds how long an issued passcode stays redeemable.
	CodeTTL = 10 * time.Minute
	// MaxCodeAttempts caps failed validations before a new code is required.
	MaxCodeAttempts = 5
)

// CodeCheck is the outcome of validating a submitted passcode.
type CodeCheck struct {
	Valid   bool
	Failure CodeFailure
}

// ValidateCode runs the passcode state machine. Checks run in a fixed order
// so the surfaced failure is deterministic when several conditions hold at
// once: attempt cap, then missing code, then expiry, then mismatch.
func ValidateCode(submitted string, stored *string, expiry *time.Time, attempts int, now time.Time) CodeCheck {
	if attempts >= MaxCodeAttempts {
		return CodeCheck{Failure: CodeTooManyAttempts}
	}
	if stored == nil || expiry == nil {
		return CodeCheck{Failure: CodeNotFound}
	}
	if now.After(*expiry) {
		return CodeCheck{Failure: CodeExpired}
	}
	if submitted != *stored {
		return CodeCheck{Failure: CodeMismatch}
	}
	return CodeCheck{Valid: true}
}

type OTPStore interface {
	GetInvitation(email string) (*models.Invitation, error)
	// SetInvitationCode stores a fresh code and expiry and resets the
	// failed-attempt counter.
	SetInvitationCode(email, code string, expiresAt time.Time) error
	IncrementAttempts(email string) error
	// RedeemInvitationCode clears code, expiry and attempts in a single
	// update and records the consent choice. Codes are single-use only
	// because this step runs on every success.
	RedeemInvitationCode(email string, consent bool) error
	AddAudit(entry models.AuditEntry)
}

// CodeMailer delivers a passcode out of band. Failure is a boolean, not an
// error: the caller decides what to surface.
type CodeMailer interface {
	SendCode(email, code string) bool
}

// ParticipantTokenSigner wraps a validated participant identity into a signed
// session token.
type ParticipantTokenSigner func(email string, group models.StakeholderGroup, consent bool, ttl time.Duration) (string, error)

type OTPService struct {
	store     OTPStore
	policy    *PolicyService
	limiter   Limiter
	mailer    CodeMailer
	signToken ParticipantTokenSigner
	now       func() time.Time
	genCode   func() (string, error)

	// fixed-window quotas for code requests
	emailLimit  int
	emailWindow time.Duration
	ipLimit     int
	ipWindow    time.Duration
}

type OTPConfig struct {
	EmailLimit  int
	EmailWindow time.Duration
	IPLimit     int
	IPWindow    time.Duration
}

// ParticipantSession is the result of a successful code redemption.
type ParticipantSession struct {
	Token string
	Group models.StakeholderGroup
}

// ParticipantTokenTTL is short: a participant session gates a single
// completion event, not ongoing privileged access.
const ParticipantTokenTTL = 2 * time.Hour

func NewOTPService(store OTPStore, policy *PolicyService, limiter Limiter, mailer CodeMailer, signer ParticipantTokenSigner, cfg OTPConfig) *OTPService {
	if cfg.EmailLimit <= 0 {
		cfg.EmailLimit = 3
	}
	if cfg.EmailWindow <= 0 {
		cfg.EmailWindow = 10 * time.Minute
	}
	if cfg.IPLimit <= 0 {
		cfg.IPLimit = 10
	}
	if cfg.IPWindow <= 0 {
		cfg.IPWindow = time.Minute
	}
	return &OTPService{
		store:       store,
		policy:      policy,
		limiter:     limiter,
		mailer:      mailer,
		signToken:   signer,
		now:         func() time.Time { return time.Now().UTC() },
		genCode:     GenerateCode,
		emailLimit:  cfg.EmailLimit,
		emailWindow: cfg.EmailWindow,
		ipLimit:     cfg.IPLimit,
		ipWindow:    cfg.IPWindow,
	}
}

// RequestCode issues a fresh passcode for email and sends it out of band.
// Flow: access policy, rate limit (per email and per client IP), generate,
// persist, send.
func (s *OTPService) RequestCode(ctx context.Context, email, clientIP string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return NewInvalidError("valid email required")
	}
	dec, err := s.policy.CanAccessSurvey(email)
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return NewUnauthorizedError(dec.Reason)
	}
	ok, err := s.limiter.Allow(ctx, "otp:email:"+email, s.emailLimit, s.emailWindow)
	if err != nil {
		return err
	}
	if !ok {
		return NewTooManyRequestsError("too many code requests; try again later")
	}
	if clientIP != "" {
		ok, err := s.limiter.Allow(ctx, "otp:ip:"+clientIP, s.ipLimit, s.ipWindow)
		if err != nil {
			return err
		}
		if !ok {
			return NewTooManyRequestsError("too many code requests; try again later")
		}
	}
	inv, err := s.store.GetInvitation(email)
	if err != nil {
		return err
	}
	if inv == nil {
		return NewNotFoundError("no invitation for this email")
	}
	if inv.Blocked {
		return NewUnauthorizedError("invitation blocked")
	}
	code, err := s.genCode()
	if err != nil {
		return NewInternalError("could not generate code")
	}
	if err := s.store.SetInvitationCode(email, code, s.now().Add(CodeTTL)); err != nil {
		return err
	}
	if !s.mailer.SendCode(email, code) {
		return NewInternalError("could not send code")
	}
	return nil
}

// VerifyCode redeems a passcode. On success the stored code state is cleared
// in one update and a participant session token is issued; on any failure the
// persisted attempt counter is incremented.
func (s *OTPService) VerifyCode(ctx context.Context, email, code string, consent bool) (*ParticipantSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, NewInvalidError("email and code required")
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
	check := ValidateCode(code, inv.Code, inv.CodeExpiresAt, inv.Attempts, s.now())
	if !check.Valid {
		if err := s.store.IncrementAttempts(email); err != nil {
			return nil, err
		}
		return nil, NewCodeRejectedError(check.Failure)
	}
	if err := s.store.RedeemInvitationCode(email, consent); err != nil {
		return nil, err
	}
	token, err := s.signToken(email, inv.Group, consent, ParticipantTokenTTL)
	if err != nil {
		return nil, NewInternalError("could not sign session token")
	}
	s.store.AddAudit(models.AuditEntry{Time: s.now(), Actor: email, Action: "code_redeemed", Target: string(inv.Group)})
	return &ParticipantSession{Token: token, Group: inv.Group}, nil
}

// RequestQuota exposes the remaining request allowance and window reset for
// back-off headers.
func (s *OTPService) RequestQuota(ctx context.Context, email string) (remaining int, resetAt time.Time) {
	key := "otp:email:" + strings.ToLower(strings.TrimSpace(email))
	return s.limiter.Remaining(ctx, key, s.emailLimit), s.limiter.ResetAt(ctx, key)
}
