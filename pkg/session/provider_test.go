package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, tenantID string, expiresAt time.Time) string {
	t.Helper()
	claims := AccessTokenClaims{
		TenantID: tenantID,
		UserID:   "user-7",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return signed
}

func TestInstallExtractsTenantScope(t *testing.T) {
	provider := NewProvider()
	token := mintToken(t, "tenant-1", time.Now().Add(time.Hour))

	installed, err := provider.Install(token)
	if err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if installed.TenantID != "tenant-1" || installed.UserID != "user-7" {
		t.Fatalf("unexpected context %+v", installed)
	}

	current, err := provider.Current()
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if current.Token != token {
		t.Fatalf("token not preserved")
	}
}

func TestInstallRejectsMissingTenant(t *testing.T) {
	provider := NewProvider()
	token := mintToken(t, "", time.Now().Add(time.Hour))

	if _, err := provider.Install(token); err == nil {
		t.Fatalf("expected error for token without tenant scope")
	}
}

func TestCurrentRejectsExpiredSession(t *testing.T) {
	provider := NewProvider()
	token := mintToken(t, "tenant-1", time.Now().Add(-time.Minute))

	if _, err := provider.Install(token); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	if _, err := provider.Current(); err == nil {
		t.Fatalf("expected expired session error")
	}
}

func TestCurrentWithoutSession(t *testing.T) {
	if _, err := NewProvider().Current(); err == nil {
		t.Fatalf("expected error with no session installed")
	}
}
