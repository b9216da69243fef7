package auth_test

import (
	"testing"
	"time"

	"github.com/papertrade/api/internal/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := auth.NewIssuer("test-secret-at-least-32-bytes-long", time.Hour)

	token, err := issuer.GenerateToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	userID, err := issuer.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("expected user-1, got %q", userID)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	issuer := auth.NewIssuer("test-secret-at-least-32-bytes-long", time.Hour)
	other := auth.NewIssuer("a-completely-different-secret-key!", time.Hour)

	token, err := issuer.GenerateToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := other.VerifyToken(token); err == nil {
		t.Error("token signed with another secret should not verify")
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	issuer := auth.NewIssuer("test-secret-at-least-32-bytes-long", -time.Minute)

	token, err := issuer.GenerateToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := issuer.VerifyToken(token); err == nil {
		t.Error("expired token should not verify")
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	issuer := auth.NewIssuer("test-secret-at-least-32-bytes-long", time.Hour)

	for _, tok := range []string{"", "abc", "a.b.c"} {
		if _, err := issuer.VerifyToken(tok); err == nil {
			t.Errorf("token %q should not verify", tok)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !auth.CheckPassword(hash, "hunter2hunter2") {
		t.Error("correct password should check out")
	}
	if auth.CheckPassword(hash, "wrong") {
		t.Error("wrong password should fail")
	}
	// Empty stored hash (unknown account) must fail, not panic.
	if auth.CheckPassword("", "hunter2hunter2") {
		t.Error("empty hash should never match")
	}
}
