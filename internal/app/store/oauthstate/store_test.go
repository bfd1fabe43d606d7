package oauthstate

import (
	"testing"
	"time"

	"github.com/uncip/guardhub/internal/testutil"
)

func TestSaveValidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := s.Save(ctx, "tok-1", "/children", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ret, valid, err := s.Validate(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !valid || ret != "/children" {
		t.Fatalf("valid = %v, returnURL = %q", valid, ret)
	}

	// One-time use: a second validation fails.
	_, valid, err = s.Validate(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Validate again: %v", err)
	}
	if valid {
		t.Errorf("state token was reusable")
	}
}

func TestValidateExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := s.Save(ctx, "tok-old", "", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, valid, err := s.Validate(ctx, "tok-old")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if valid {
		t.Errorf("expired state accepted")
	}
}

func TestCleanupExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_ = s.Save(ctx, "tok-a", "", time.Now().Add(-time.Minute))
	_ = s.Save(ctx, "tok-b", "", time.Now().Add(time.Minute))

	n, err := s.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
}
