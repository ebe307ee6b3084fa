package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	testAccessSecret  = "test-access-secret-16+chars"
	testRefreshSecret = "test-refresh-secret-16+chars"
)

// newTestTokenService creates a TokenService with fixed, known secrets so
// tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testAccessSecret, testRefreshSecret, time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short", testRefreshSecret, 0); err == nil {
		t.Error("NewTokenService() should reject a short access secret")
	}
	if _, err := NewTokenService(testAccessSecret, "short", 0); err == nil {
		t.Error("NewTokenService() should reject a short refresh secret")
	}
}

func TestNewTokenService_SameSecrets(t *testing.T) {
	if _, err := NewTokenService(testAccessSecret, testAccessSecret, 0); err == nil {
		t.Error("NewTokenService() should reject identical secrets")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	ts, err := NewTokenService(testAccessSecret, testRefreshSecret, 0)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	if ts.accessTTL != DefaultAccessTTL {
		t.Errorf("accessTTL = %v, want %v", ts.accessTTL, DefaultAccessTTL)
	}
}

// =========================================================================
// ACCESS TOKEN TESTS
// =========================================================================

func TestAccess_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateAccess("user-abc-123")
	if err != nil {
		t.Fatalf("GenerateAccess() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token doesn't look like a JWT: %q", token)
	}

	got, err := ts.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess() error = %v", err)
	}
	if got != "user-abc-123" {
		t.Errorf("ValidateAccess() userID = %q, want %q", got, "user-abc-123")
	}
}

func TestAccess_Expired(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateAccessWithDuration("user-123", -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateAccessWithDuration() error = %v", err)
	}

	_, err = ts.ValidateAccess(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("ValidateAccess() error = %v, want ErrTokenExpired", err)
	}
}

func TestAccess_RefreshTokenRejected(t *testing.T) {
	ts := newTestTokenService(t)

	refresh, _ := ts.GenerateRefresh("user-123")
	if _, err := ts.ValidateAccess(refresh); err == nil {
		t.Fatal("ValidateAccess() accepted a refresh token")
	}
}

func TestAccess_Tampered(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.GenerateAccess("user-123")
	tampered := token[:len(token)-3] + "xxx"

	if _, err := ts.ValidateAccess(tampered); err == nil {
		t.Fatal("ValidateAccess() should return an error for a tampered token")
	}
}

func TestAccess_WrongSecret(t *testing.T) {
	ts1 := newTestTokenService(t)
	ts2, _ := NewTokenService("another-access-secret!!", testRefreshSecret, time.Minute)

	token, _ := ts1.GenerateAccess("user-123")
	if _, err := ts2.ValidateAccess(token); err == nil {
		t.Fatal("ValidateAccess() should fail with a different secret")
	}
}

func TestAccess_GarbageInput(t *testing.T) {
	ts := newTestTokenService(t)

	for _, in := range []string{"", "not.a.jwt.token", "abc"} {
		if _, err := ts.ValidateAccess(in); err == nil {
			t.Errorf("ValidateAccess(%q) should fail", in)
		}
	}
}

// =========================================================================
// REFRESH TOKEN TESTS
// =========================================================================

func TestRefresh_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateRefresh("user-xyz")
	if err != nil {
		t.Fatalf("GenerateRefresh() error = %v", err)
	}

	got, err := ts.ValidateRefresh(token)
	if err != nil {
		t.Fatalf("ValidateRefresh() error = %v", err)
	}
	if got != "user-xyz" {
		t.Errorf("ValidateRefresh() userID = %q, want %q", got, "user-xyz")
	}
}

func TestRefresh_TokensAreUnique(t *testing.T) {
	ts := newTestTokenService(t)

	// Same user, same second: the jti keeps them apart.
	t1, _ := ts.GenerateRefresh("user-1")
	t2, _ := ts.GenerateRefresh("user-1")
	if t1 == t2 {
		t.Error("GenerateRefresh() returned identical tokens")
	}
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	ts := newTestTokenService(t)

	access, _ := ts.GenerateAccess("user-123")
	if _, err := ts.ValidateRefresh(access); err == nil {
		t.Fatal("ValidateRefresh() accepted an access token")
	}
}
