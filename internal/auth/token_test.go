package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		Sub:    "user_1",
		Tenant: "acme",
		Email:  "legal@acme.test",
		Role:   "negotiator",
		JTI:    "jti_1",
		Exp:    time.Now().Add(time.Hour).Unix(),
	}
	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed != claims {
		t.Fatalf("claims round trip: got %+v, want %+v", parsed, claims)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, Claims{
		Sub: "user_1", Tenant: "acme", JTI: "jti_1",
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := ParseToken([]byte("other-secret"), token); err != ErrInvalidToken {
		t.Fatalf("wrong secret: got %v, want ErrInvalidToken", err)
	}
	if _, err := ParseToken(secret, token+"x"); err != ErrInvalidToken {
		t.Fatalf("tampered signature: got %v, want ErrInvalidToken", err)
	}
	if _, err := ParseToken(secret, "not-a-token"); err != ErrInvalidToken {
		t.Fatalf("malformed: got %v, want ErrInvalidToken", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, Claims{
		Sub: "user_1", Tenant: "acme", JTI: "jti_1",
		Exp: time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken(secret, token); err != ErrExpiredToken {
		t.Fatalf("expired token: got %v, want ErrExpiredToken", err)
	}
}
