package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// ============================================================================
// Test Helpers
// ============================================================================

const testSecret = "test-secret-test-secret-test-secret"

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Secret: testSecret, Issuer: "test-issuer", ExpirationMins: 15})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

// ============================================================================
// NewService Tests
// ============================================================================

func TestNewService_EmptySecret_ReturnsErrInvalidKey(t *testing.T) {
	t.Parallel()

	_, err := NewService(Config{Issuer: "test-issuer", ExpirationMins: 15})
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestGetExpiration_ReturnsConfiguredDuration(t *testing.T) {
	t.Parallel()

	if got := newTestService(t).GetExpiration(); got != 15*time.Minute {
		t.Errorf("expected 15m, got %v", got)
	}
}

// ============================================================================
// Sign Tests
// ============================================================================

func TestSign_SetsRegisteredClaims(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	token, err := svc.Sign(Claims{UserID: "user:123", Email: "a@example.com", Role: "organizer"})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected three-part token, got %q", token)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Issuer != "test-issuer" {
		t.Errorf("expected issuer 'test-issuer', got %q", claims.Issuer)
	}
	if claims.Subject != "user:123" {
		t.Errorf("expected subject 'user:123', got %q", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("expected jti to be set")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		t.Fatal("expected iat and exp to be set")
	}
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != 15*time.Minute {
		t.Errorf("expected 15m lifetime, got %v", ttl)
	}
}

func TestSign_PreservesCustomExpiration(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)

	token, err := svc.Sign(Claims{
		UserID:           "user:123",
		RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(exp)},
	})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Errorf("expected exp %v, got %v", exp, claims.ExpiresAt.Time)
	}
}

// ============================================================================
// Validate Tests
// ============================================================================

func TestSignAndValidate_RoundTrip(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	token, err := svc.Sign(Claims{UserID: "user:abc", Email: "admin@example.com", Role: "admin"})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims.UserID != "user:abc" || claims.Email != "admin@example.com" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if !claims.IsAdmin() {
		t.Error("expected admin claims")
	}
}

func TestValidate_ExpiredToken_ReturnsErrTokenExpired(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	token, err := svc.Sign(Claims{
		UserID:           "user:123",
		RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if _, err := svc.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidate_DifferentSecret_ReturnsErrInvalidSignature(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	other, err := NewService(Config{Secret: "another-secret-another-secret-xx", Issuer: "test-issuer", ExpirationMins: 15})
	if err != nil {
		t.Fatal(err)
	}

	token, err := other.Sign(Claims{UserID: "user:123"})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestValidate_WrongIssuer_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	other, err := NewService(Config{Secret: testSecret, Issuer: "someone-else", ExpirationMins: 15})
	if err != nil {
		t.Fatal(err)
	}

	token, err := other.Sign(Claims{UserID: "user:123"})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidate_NoneAlgorithm_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, Claims{
		UserID: "user:123",
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := svc.Validate(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidate_MissingUserID_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	token, err := svc.Sign(Claims{Email: "nobody@example.com"})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidate_Malformed_ReturnsErrInvalidToken(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	for _, token := range []string{"", "abc", "a.b", "a.b.c.d"} {
		if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestSecretStrongEnough(t *testing.T) {
	t.Parallel()

	if SecretStrongEnough("short") {
		t.Error("expected short secret to be rejected")
	}
	if !SecretStrongEnough(testSecret) {
		t.Error("expected 35-char secret to pass")
	}
}
