package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

const secret = "token-test-secret"

func TestTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	signed, err := GenerateToken(secret, userID, RolePatient, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	gotID, gotRole, err := ParseToken(secret, signed)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if gotID != userID {
		t.Errorf("user id = %s, want %s", gotID, userID)
	}
	if gotRole != RolePatient {
		t.Errorf("role = %s, want %s", gotRole, RolePatient)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	signed, err := GenerateToken(secret, uuid.New(), RoleProvider, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, _, err := ParseToken("some-other-secret", signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	signed, err := GenerateToken(secret, uuid.New(), RolePatient, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, _, err := ParseToken(secret, signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	signed, err := GenerateToken(secret, uuid.New(), "admin", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, _, err := ParseToken(secret, signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, _, err := ParseToken(secret, "not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
