// Package notes is the single authority for mutating board notes. It
// enforces authentication, the email-verification gate, and ownership
// before any write reaches the repository or blob storage.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mtaani/noticeboard/internal/auth"
	"github.com/mtaani/noticeboard/internal/category"
	"github.com/mtaani/noticeboard/internal/model"
	"github.com/mtaani/noticeboard/internal/store"
)

const (
	maxTitleLen = 50
	noteTTL     = 14 * 24 * time.Hour
)

// BlobStore is the slice of object storage the lifecycle needs.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, urlOrKey string) error
	Configured() bool
}

// Image is a raw attachment payload from a form submission.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Input carries the submitted note fields. Image takes precedence over
// ImageURL; with neither, the note has no attachment.
type Input struct {
	Type         string
	Title        string
	Description  string
	ContactName  string
	ContactPhone string
	Location     string
	ImageURL     string
	Image        *Image
}

type Service struct {
	notes  *store.NoteStore
	users  *store.UserStore
	blobs  BlobStore
	logger *slog.Logger
}

func NewService(ns *store.NoteStore, us *store.UserStore, blobs BlobStore, logger *slog.Logger) *Service {
	return &Service{notes: ns, users: us, blobs: blobs, logger: logger}
}

func validateFields(in Input) error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title is required")
	}
	if len(in.Title) > maxTitleLen {
		return invalid(fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	if strings.TrimSpace(in.Description) == "" {
		return invalid("description is required")
	}
	if strings.TrimSpace(in.ContactName) == "" {
		return invalid("contact name is required")
	}
	if strings.TrimSpace(in.ContactPhone) == "" {
		return invalid("contact phone or email is required")
	}
	return nil
}

// Create pins a new note for the given identity. The identity's
// verification flag is re-read from the user store first: verification
// happens out of band (an email link click) and the session's cached copy
// must not be trusted.
func (s *Service) Create(ctx context.Context, in Input, ident *auth.Identity) (*model.Note, error) {
	if ident == nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ident.UserID)
	if err != nil {
		return nil, fmt.Errorf("refresh identity: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if !user.EmailVerified {
		return nil, ErrNotVerified
	}

	if !category.Valid(in.Type) {
		return nil, invalid("unknown section")
	}
	if err := validateFields(in); err != nil {
		return nil, err
	}

	imageURL, uploaded, err := s.resolveImage(ctx, in, user.ID)
	if err != nil {
		return nil, err
	}

	userName := user.Name
	if userName == "" {
		userName = "Anonymous"
	}

	note, err := s.notes.Create(model.Note{
		Type:         in.Type,
		Title:        in.Title,
		Description:  in.Description,
		ContactName:  in.ContactName,
		ContactPhone: in.ContactPhone,
		Location:     in.Location,
		ImageURL:     imageURL,
		Color:        category.ColorFor(in.Type),
		UserID:       user.ID,
		UserName:     userName,
		ExpiresAt:    time.Now().UTC().Add(noteTTL),
	})
	if err != nil {
		// Compensate: don't leave an orphaned blob behind a failed insert.
		if uploaded {
			if delErr := s.blobs.Delete(ctx, imageURL); delErr != nil {
				s.logger.Warn("compensating blob delete failed", "url", imageURL, "error", delErr)
			}
		}
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.logger.Info("note pinned", "id", note.ID, "type", note.Type, "user_id", user.ID)
	return note, nil
}

// Update edits a note's mutable fields. Owner only; type, owner, and
// timestamps never change. Unlike Create, the verification gate is not
// re-checked: editing existing content is deliberately cheaper than
// flooding new content.
func (s *Service) Update(ctx context.Context, id string, in Input, ident *auth.Identity) (*model.Note, error) {
	if ident == nil {
		return nil, ErrUnauthenticated
	}

	existing, err := s.notes.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.UserID != ident.UserID {
		return nil, ErrNotOwner
	}

	if err := validateFields(in); err != nil {
		return nil, err
	}

	imageURL, uploaded, err := s.resolveImage(ctx, in, ident.UserID)
	if err != nil {
		return nil, err
	}

	note, err := s.notes.Update(id, in.Title, in.Description, in.ContactName, in.ContactPhone, in.Location, imageURL)
	if err != nil {
		if uploaded {
			if delErr := s.blobs.Delete(ctx, imageURL); delErr != nil {
				s.logger.Warn("compensating blob delete failed", "url", imageURL, "error", delErr)
			}
		}
		return nil, fmt.Errorf("update note: %w", err)
	}
	if note == nil {
		// Deleted between the ownership read and the write.
		return nil, ErrNotFound
	}

	return note, nil
}

// Delete tears down a note. A nil identity is a silent no-op: the UI never
// offers deletion to anonymous viewers, so there is nothing to do. The blob
// delete is best effort; the note row delete is the operation of record.
func (s *Service) Delete(ctx context.Context, id string, ident *auth.Identity) error {
	if ident == nil {
		return nil
	}

	note, err := s.notes.GetByID(id)
	if err != nil {
		return fmt.Errorf("get note: %w", err)
	}
	if note != nil {
		if note.UserID != ident.UserID {
			return ErrNotOwner
		}
		if note.ImageURL != "" && s.blobs.Configured() {
			if err := s.blobs.Delete(ctx, note.ImageURL); err != nil {
				s.logger.Warn("blob delete failed, continuing", "url", note.ImageURL, "error", err)
			}
		}
	}

	if err := s.notes.Delete(id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}

	s.logger.Info("note torn down", "id", id, "user_id", ident.UserID)
	return nil
}

// Get is a public point read.
func (s *Service) Get(ctx context.Context, id string) (*model.Note, error) {
	note, err := s.notes.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	if note == nil {
		return nil, ErrNotFound
	}
	return note, nil
}

// List returns the full board, newest first.
func (s *Service) List(ctx context.Context) ([]model.Note, error) {
	return s.notes.List()
}

// resolveImage turns the submitted attachment into a stored URL. A raw
// payload is uploaded under a per-user prefix with a fresh UUID object name
// so rapid repeat submissions can never collide; otherwise any supplied URL
// is used as-is.
func (s *Service) resolveImage(ctx context.Context, in Input, userID int64) (url string, uploaded bool, err error) {
	if in.Image == nil || len(in.Image.Data) == 0 {
		return in.ImageURL, false, nil
	}

	ext := strings.ToLower(filepath.Ext(in.Image.Filename))
	key := fmt.Sprintf("notes/%d/%s%s", userID, uuid.NewString(), ext)

	contentType := in.Image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err = s.blobs.Upload(ctx, key, in.Image.Data, contentType)
	if err != nil {
		return "", false, fmt.Errorf("upload image: %w", err)
	}
	return url, true, nil
}
