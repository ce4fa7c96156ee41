package store

import (
	"testing"

	"github.com/mtaani/noticeboard/internal/database"
)

func setupTokenTestDB(t *testing.T) (*VerificationTokenStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewVerificationTokenStore(db), NewUserStore(db)
}

func TestVerificationTokenSingleUse(t *testing.T) {
	ts, us := setupTokenTestDB(t)
	user := testUser(t, us, "tok@example.com")

	vt, err := ts.Create(user.ID)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	got, err := ts.GetValid(vt.Token)
	if err != nil {
		t.Fatalf("get valid: %v", err)
	}
	if got == nil || got.UserID != user.ID {
		t.Fatalf("get valid = %+v, want user %d", got, user.ID)
	}

	if err := ts.MarkUsed(vt.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	got, err = ts.GetValid(vt.Token)
	if err != nil {
		t.Fatalf("get after use: %v", err)
	}
	if got != nil {
		t.Error("used token should no longer validate")
	}
}

func TestVerificationTokenUnknown(t *testing.T) {
	ts, _ := setupTokenTestDB(t)

	got, err := ts.GetValid("bogus")
	if err != nil {
		t.Fatalf("get valid: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestVerificationTokenDeleteExpired(t *testing.T) {
	ts, us := setupTokenTestDB(t)
	user := testUser(t, us, "tok2@example.com")

	vt, err := ts.Create(user.ID)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if err := ts.MarkUsed(vt.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	n, err := ts.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d tokens, want 1", n)
	}
}
