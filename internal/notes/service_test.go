package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mtaani/noticeboard/internal/auth"
	"github.com/mtaani/noticeboard/internal/database"
	"github.com/mtaani/noticeboard/internal/store"
)

type fakeBlob struct {
	uploads    map[string][]byte
	deleted    []string
	uploadErr  error
	deleteErr  error
	configured bool
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{uploads: make(map[string][]byte), configured: true}
}

func (f *fakeBlob) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads[key] = data
	return "https://blobs.example.com/" + key, nil
}

func (f *fakeBlob) Delete(ctx context.Context, urlOrKey string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, urlOrKey)
	return nil
}

func (f *fakeBlob) Configured() bool {
	return f.configured
}

type fixture struct {
	db    *sql.DB
	svc   *Service
	notes *store.NoteStore
	users *store.UserStore
	blobs *fakeBlob
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ns := store.NewNoteStore(db)
	us := store.NewUserStore(db)
	blobs := newFakeBlob()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		db:    db,
		svc:   NewService(ns, us, blobs, logger),
		notes: ns,
		users: us,
		blobs: blobs,
	}
}

// identity creates a user and returns the matching request identity.
func (f *fixture) identity(t *testing.T, email string, verified bool) *auth.Identity {
	t.Helper()
	user, err := f.users.Create(email, "hash", strings.SplitN(email, "@", 2)[0])
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if verified {
		if err := f.users.MarkVerified(user.ID); err != nil {
			t.Fatalf("mark verified: %v", err)
		}
	}
	return &auth.Identity{UserID: user.ID, Email: email, Name: user.Name, EmailVerified: verified}
}

func validInput() Input {
	return Input{
		Type:         "for_sale",
		Title:        "Bike",
		Description:  "Good condition",
		ContactName:  "A",
		ContactPhone: "0700000000",
	}
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	all, err := f.notes.List()
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	return len(all)
}

func TestCreateRequiresIdentity(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(context.Background(), validInput(), nil)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if f.count(t) != 0 {
		t.Error("no document may be written")
	}
}

func TestCreateRequiresVerifiedEmail(t *testing.T) {
	f := setup(t)
	ident := f.identity(t, "unverified@example.com", false)

	_, err := f.svc.Create(context.Background(), validInput(), ident)
	if !errors.Is(err, ErrNotVerified) {
		t.Fatalf("err = %v, want ErrNotVerified", err)
	}
	if f.count(t) != 0 {
		t.Error("no document may be written for an unverified identity")
	}
}

func TestCreateRefreshesVerificationFromStore(t *testing.T) {
	f := setup(t)

	// The session snapshot says unverified, but the user clicked the link
	// since signing in. The live re-read must win.
	ident := f.identity(t, "fresh@example.com", true)
	ident.EmailVerified = false

	note, err := f.svc.Create(context.Background(), validInput(), ident)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if note == nil {
		t.Fatal("expected note")
	}

	// And the reverse: a stale "verified" snapshot must not be trusted.
	stale := f.identity(t, "stale@example.com", false)
	stale.EmailVerified = true

	_, err = f.svc.Create(context.Background(), validInput(), stale)
	if !errors.Is(err, ErrNotVerified) {
		t.Fatalf("err = %v, want ErrNotVerified from live re-read", err)
	}
}

func TestCreateSetsOwnershipColorAndExpiry(t *testing.T) {
	f := setup(t)
	ident := f.identity(t, "alice@example.com", true)

	in := validInput()
	in.Type = "jobs"
	before := time.Now().UTC()

	note, err := f.svc.Create(context.Background(), in, ident)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if note.UserID != ident.UserID {
		t.Errorf("user_id = %d, want %d", note.UserID, ident.UserID)
	}
	if note.UserName != "alice" {
		t.Errorf("user_name = %q, want %q", note.UserName, "alice")
	}
	if note.Type != "jobs" {
		t.Errorf("type = %q, want jobs", note.Type)
	}
	if note.Color != "#00B0FF" {
		t.Errorf("color = %q, want the jobs section color", note.Color)
	}

	wantExpiry := before.Add(14 * 24 * time.Hour)
	diff := note.ExpiresAt.Sub(wantExpiry)
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("expires_at = %v, want about %v", note.ExpiresAt, wantExpiry)
	}
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	ident := f.identity(t, "val@example.com", true)

	cases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"unknown section", func(in *Input) { in.Type = "garage_sales" }},
		{"empty title", func(in *Input) { in.Title = "  " }},
		{"long title", func(in *Input) { in.Title = strings.Repeat("x", 51) }},
		{"empty description", func(in *Input) { in.Description = "" }},
		{"empty contact name", func(in *Input) { in.ContactName = "" }},
		{"empty contact phone", func(in *Input) { in.ContactPhone = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := f.svc.Create(context.Background(), in, ident)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}

	if f.count(t) != 0 {
		t.Error("rejected input must not write documents")
	}
}

func TestCreateUploadsImage(t *testing.T) {
	f := setup(t)
	ident := f.identity(t, "img@example.com", true)

	in := validInput()
	in.Image = &Image{Filename: "bike.JPG", ContentType: "image/jpeg", Data: []byte("jpegdata")}

	note, err := f.svc.Create(context.Background(), in, ident)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(f.blobs.uploads) != 1 {
		t.Fatalf("uploads = %d, want exactly 1", len(f.blobs.uploads))
	}
	for key := range f.blobs.uploads {
		prefix := fmt.Sprintf("notes/%d/", ident.UserID)
		if !strings.HasPrefix(key, prefix) {
			t.Errorf("key = %q, want prefix %q", key, prefix)
		}
		if !strings.HasSuffix(key, ".jpg") {
			t.Errorf("key = %q, want lowercased extension", key)
		}
	}
	if !strings.HasPrefix(note.ImageURL, "https://blobs.example.com/") {
		t.Errorf("image_url = %q", note.ImageURL)
	}
}

func TestCreateKeepsSuppliedURLWithoutFile(t *testing.T) {
	f := setup(t)
	ident := f.identity(t, "url@example.com", true)

	in := validInput()
	in.ImageURL = "https://elsewhere.example.com/pic.png"

	note, err := f.svc.Create(context.Background(), in, ident)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if note.ImageURL != in.ImageURL {
		t.Errorf("image_url = %q, want supplied URL", note.ImageURL)
	}
	if len(f.blobs.uploads) != 0 {
		t.Error("no blob write may occur without a file")
	}
}

func TestCreateUploadFailureWritesNothing(t *testing.T) {
	f := setup(t)
	ident := f.identity(t, "fail@example.com", true)
	f.blobs.uploadErr = errors.New("storage down")

	in := validInput()
	in.Image = &Image{Filename: "x.png", Data: []byte("png")}

	_, err := f.svc.Create(context.Background(), in, ident)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if f.count(t) != 0 {
		t.Error("failed upload must leave no document behind")
	}
}

func TestCreateCompensatesBlobOnInsertFailure(t *testing.T) {
	f := setup(t)
	ident := f.identity(t, "comp@example.com", true)

	// Force the insert to fail after the upload succeeded.
	if _, err := f.db.Exec(`DROP TABLE notes`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	in := validInput()
	in.Image = &Image{Filename: "x.png", Data: []byte("png")}

	_, err := f.svc.Create(context.Background(), in, ident)
	if err == nil {
		t.Fatal("expected insert error")
	}
	if len(f.blobs.deleted) != 1 {
		t.Fatalf("deleted = %v, want the uploaded blob compensated away", f.blobs.deleted)
	}
}

func TestUpdateOwnerOnly(t *testing.T) {
	f := setup(t)
	owner := f.identity(t, "owner@example.com", true)
	other := f.identity(t, "other@example.com", true)

	note, err := f.svc.Create(context.Background(), validInput(), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	in := validInput()
	in.Title = "Hijacked"
	_, err = f.svc.Update(context.Background(), note.ID, in, other)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	got, _ := f.notes.GetByID(note.ID)
	if got.Title != "Bike" {
		t.Errorf("title = %q, note must be unchanged", got.Title)
	}
}

func TestUpdateKeepsImmutableFields(t *testing.T) {
	f := setup(t)
	owner := f.identity(t, "immut@example.com", true)

	note, err := f.svc.Create(context.Background(), validInput(), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	in := validInput()
	in.Type = "events" // must be ignored: type is frozen at creation
	in.Title = "Bike, price drop"

	updated, err := f.svc.Update(context.Background(), note.ID, in, owner)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Type != "for_sale" {
		t.Errorf("type = %q, want frozen for_sale", updated.Type)
	}
	if updated.Color != note.Color {
		t.Errorf("color changed: %q -> %q", note.Color, updated.Color)
	}
	if !updated.ExpiresAt.Equal(note.ExpiresAt) {
		t.Errorf("expires_at changed: %v -> %v", note.ExpiresAt, updated.ExpiresAt)
	}
	if updated.Title != "Bike, price drop" {
		t.Errorf("title = %q", updated.Title)
	}
}

func TestUpdateDoesNotRegateVerification(t *testing.T) {
	f := setup(t)
	owner := f.identity(t, "lapsed@example.com", true)

	note, err := f.svc.Create(context.Background(), validInput(), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Only creation is gated on verification; editing existing content is not.
	if _, err := f.db.Exec(`UPDATE users SET email_verified = 0 WHERE id = ?`, owner.UserID); err != nil {
		t.Fatalf("unverify user: %v", err)
	}

	in := validInput()
	in.Title = "Still for sale"
	if _, err := f.svc.Update(context.Background(), note.ID, in, owner); err != nil {
		t.Fatalf("update by unverified owner: %v", err)
	}
}

func TestUpdateMissingNote(t *testing.T) {
	f := setup(t)
	ident := f.identity(t, "miss@example.com", true)

	_, err := f.svc.Update(context.Background(), "no-such-id", validInput(), ident)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteNilIdentityIsNoop(t *testing.T) {
	f := setup(t)
	owner := f.identity(t, "noop@example.com", true)

	note, err := f.svc.Create(context.Background(), validInput(), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.Delete(context.Background(), note.ID, nil); err != nil {
		t.Fatalf("anonymous delete must silently return, got %v", err)
	}
	if f.count(t) != 1 {
		t.Error("note must persist after anonymous delete attempt")
	}
}

func TestDeleteScenario(t *testing.T) {
	f := setup(t)
	a := f.identity(t, "a@example.com", true)
	b := f.identity(t, "b@example.com", true)

	note, err := f.svc.Create(context.Background(), validInput(), a)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if note.UserID != a.UserID {
		t.Fatalf("user_id = %d, want %d", note.UserID, a.UserID)
	}

	// B attempts to tear down A's note.
	err = f.svc.Delete(context.Background(), note.ID, b)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	if f.count(t) != 1 {
		t.Fatal("note must persist after non-owner delete")
	}

	// A tears it down.
	if err := f.svc.Delete(context.Background(), note.ID, a); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if f.count(t) != 0 {
		t.Fatal("note must be removed after owner delete")
	}
}

func TestDeleteCleansUpBlob(t *testing.T) {
	f := setup(t)
	owner := f.identity(t, "blob@example.com", true)

	in := validInput()
	in.Image = &Image{Filename: "pic.png", Data: []byte("png")}
	note, err := f.svc.Create(context.Background(), in, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.Delete(context.Background(), note.ID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.blobs.deleted) != 1 || f.blobs.deleted[0] != note.ImageURL {
		t.Errorf("deleted blobs = %v, want [%s]", f.blobs.deleted, note.ImageURL)
	}
}

func TestDeleteSwallowsBlobFailure(t *testing.T) {
	f := setup(t)
	owner := f.identity(t, "swallow@example.com", true)

	in := validInput()
	in.Image = &Image{Filename: "pic.png", Data: []byte("png")}
	note, err := f.svc.Create(context.Background(), in, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.blobs.deleteErr = errors.New("object gone")
	if err := f.svc.Delete(context.Background(), note.ID, owner); err != nil {
		t.Fatalf("blob failure must not block note deletion, got %v", err)
	}
	if f.count(t) != 0 {
		t.Error("note row must be deleted regardless of blob outcome")
	}
}

func TestColorSurvivesCategoryConstantChange(t *testing.T) {
	f := setup(t)
	ident := f.identity(t, "frozen@example.com", true)

	in := validInput()
	in.Type = "jobs"
	note, err := f.svc.Create(context.Background(), in, ident)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The color was copied at creation; re-reading must return the stored
	// value, not a fresh lookup against the category table.
	got, err := f.svc.Get(context.Background(), note.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Color != "#00B0FF" {
		t.Errorf("color = %q, want the value stored at creation", got.Color)
	}
}
