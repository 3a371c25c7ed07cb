package identity

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSignAndVerify(t *testing.T) {
	v := NewTokenVerifier("test-secret", "clubhub")
	userID := primitive.NewObjectID()

	token, err := v.Sign(userID, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	got, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != userID {
		t.Errorf("Verify returned %s, want %s", got.Hex(), userID.Hex())
	}
}

func TestVerify_Empty(t *testing.T) {
	v := NewTokenVerifier("test-secret", "clubhub")
	if _, err := v.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	v := NewTokenVerifier("test-secret", "clubhub")
	if _, err := v.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	signer := NewTokenVerifier("secret-a", "clubhub")
	verifier := NewTokenVerifier("secret-b", "clubhub")

	token, err := signer.Sign(primitive.NewObjectID(), time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	signer := NewTokenVerifier("test-secret", "other-service")
	verifier := NewTokenVerifier("test-secret", "clubhub")

	token, err := signer.Sign(primitive.NewObjectID(), time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	v := NewTokenVerifier("test-secret", "clubhub")

	token, err := v.Sign(primitive.NewObjectID(), time.Millisecond)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestSign_RejectsZeroTTL(t *testing.T) {
	v := NewTokenVerifier("test-secret", "clubhub")
	if _, err := v.Sign(primitive.NewObjectID(), 0); err == nil {
		t.Error("expected error for zero ttl")
	}
}
