package auth_test

import (
	"testing"
	"time"

	"github.com/uncip/guardhub/internal/app/system/auth"
)

const testSecret = "test-token-secret-must-be-32-chars!!"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti, err := auth.NewTokenIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}

	in := &auth.SessionUser{
		ID:    "65f000000000000000000001",
		Name:  "Pat Parent",
		Email: "pat@example.com",
		Role:  "parent",
		Roles: []string{"parent", "community"},
	}
	tok, err := ti.Issue(in)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	out, err := ti.Parse(tok)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if out.ID != in.ID || out.Role != in.Role || out.Email != in.Email {
		t.Errorf("round trip mismatch: got %+v", out)
	}
	if len(out.Roles) != 2 {
		t.Errorf("roles lost in round trip: %v", out.Roles)
	}
}

func TestTokenIssuer_ShortSecretRejected(t *testing.T) {
	if _, err := auth.NewTokenIssuer("too-short", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestTokenIssuer_WrongSecretRejected(t *testing.T) {
	ti1, _ := auth.NewTokenIssuer(testSecret, time.Hour)
	ti2, _ := auth.NewTokenIssuer("another-token-secret-32-chars-min!!!!", time.Hour)

	tok, err := ti1.Issue(&auth.SessionUser{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := ti2.Parse(tok); err == nil {
		t.Fatal("token signed with a different secret must be rejected")
	}
}

func TestTokenIssuer_ExpiredRejected(t *testing.T) {
	ti, _ := auth.NewTokenIssuer(testSecret, time.Millisecond)
	tok, err := ti.Issue(&auth.SessionUser{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := ti.Parse(tok); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestTokenIssuer_EmptyUserID(t *testing.T) {
	ti, _ := auth.NewTokenIssuer(testSecret, time.Hour)
	if _, err := ti.Issue(&auth.SessionUser{}); err == nil {
		t.Fatal("expected error issuing token without user id")
	}
}
