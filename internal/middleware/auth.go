package middleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/quorumhq/quorum/internal/models"
)

type authCtxKey int

const authKey authCtxKey = 3

const (
	KindAdmin       = "admin"
	KindParticipant = "participant"
)

type Claims struct {
	Kind    string `json:"kind"`
	Email   string `json:"email"`
	Role    string `json:"role,omitempty"`
	Group   string `json:"group,omitempty"`
	Consent bool   `json:"consent,omitempty"`
	jwt.RegisteredClaims
}

func secret() []byte {
	s := os.Getenv("QUORUM_JWT_SECRET")
	if s == "" {
		s = "quorum-dev-secret"
	}
	return []byte(s)
}

// SignAdminToken issues an administrative session token (identity + role).
func SignAdminToken(email, role string, ttl time.Duration) (string, error) {
	return sign(Claims{Kind: KindAdmin, Email: email, Role: role}, ttl)
}

// SignParticipantToken issues a participant session token carrying the
// stakeholder group and consent flag.
func SignParticipantToken(email string, group models.StakeholderGroup, consent bool, ttl time.Duration) (string, error) {
	return sign(Claims{Kind: KindParticipant, Email: email, Group: string(group), Consent: consent}, ttl)
}

func sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

func parseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) { return secret(), nil })
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// WithAuth attaches claims to the request context when a valid bearer token
// is present. Requests without a token pass through unauthenticated.
func WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			if c, err := parseToken(tok); err == nil {
				ctx := context.WithValue(r.Context(), authKey, c)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return requireKind(next, KindAdmin)
}

func RequireParticipant(next http.Handler) http.Handler {
	return requireKind(next, KindParticipant)
}

func requireKind(next http.Handler, kind string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := r.Context().Value(authKey).(*Claims)
		if !ok || c.Kind != kind {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(authKey).(*Claims)
	return c, ok
}
