package session

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/quotedesk/fieldsync/pkg/errors"
)

// AccessTokenClaims is the slice of the backend-issued JWT the cache
// cares about. The token is minted and verified server-side; the device
// only extracts scope claims from it.
type AccessTokenClaims struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	jwt.RegisteredClaims
}

// Context is the tenant scope stamped on every record at creation and
// attached to every outbound submission.
type Context struct {
	TenantID  string
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the credential has lapsed at the given time.
func (c Context) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Provider holds the active session context. An external collaborator
// refreshes it; everything else reads it.
type Provider struct {
	mu      sync.RWMutex
	current *Context
}

func NewProvider() *Provider {
	return &Provider{}
}

// Install parses the bearer token's claims and makes them the active
// session. The signature is not checked here; verification is the
// remote service's job and the token is opaque transport material on
// this side.
func (p *Provider) Install(rawToken string) (Context, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Context{}, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	claims := &AccessTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return Context{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed token")
	}
	if claims.TenantID == "" {
		return Context{}, pkgerrors.New(pkgerrors.CodeValidation, "token has no tenant scope")
	}

	next := Context{
		TenantID: claims.TenantID,
		UserID:   claims.UserID,
		Token:    rawToken,
	}
	if claims.ExpiresAt != nil {
		next.ExpiresAt = claims.ExpiresAt.Time
	}

	p.mu.Lock()
	p.current = &next
	p.mu.Unlock()
	return next, nil
}

// Current returns the active session context.
func (p *Provider) Current() (Context, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return Context{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session")
	}
	if p.current.Expired(time.Now()) {
		return Context{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	}
	return *p.current, nil
}

// Clear drops the active session.
func (p *Provider) Clear() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}
