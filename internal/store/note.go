package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mtaani/noticeboard/internal/model"
)

type NoteStore struct {
	db *sql.DB
}

func NewNoteStore(db *sql.DB) *NoteStore {
	return &NoteStore{db: db}
}

func scanNote(scanner interface{ Scan(...any) error }) (*model.Note, error) {
	var n model.Note
	err := scanner.Scan(
		&n.ID, &n.Type, &n.Title, &n.Description, &n.ContactName, &n.ContactPhone,
		&n.Location, &n.ImageURL, &n.Color, &n.UserID, &n.UserName,
		&n.CreatedAt, &n.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

const noteCols = `id, type, title, description, contact_name, contact_phone, location, image_url, color, user_id, user_name, created_at, expires_at`

// Create inserts a note, assigning an opaque id and the server creation
// timestamp. ExpiresAt is taken from the caller.
func (s *NoteStore) Create(n model.Note) (*model.Note, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC()

	_, err := s.db.Exec(
		`INSERT INTO notes (`+noteCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, n.Type, n.Title, n.Description, n.ContactName, n.ContactPhone,
		n.Location, n.ImageURL, n.Color, n.UserID, n.UserName,
		createdAt, n.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return s.GetByID(id)
}

func (s *NoteStore) GetByID(id string) (*model.Note, error) {
	row := s.db.QueryRow(`SELECT `+noteCols+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// List returns every note, newest first. Expired notes are included: expiry
// is advisory display state, not a deletion rule.
func (s *NoteStore) List() ([]model.Note, error) {
	rows, err := s.db.Query(`SELECT ` + noteCols + ` FROM notes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// Update rewrites the mutable fields only. Type, owner, and timestamps are
// immutable once a note is pinned.
func (s *NoteStore) Update(id, title, description, contactName, contactPhone, location, imageURL string) (*model.Note, error) {
	result, err := s.db.Exec(
		`UPDATE notes SET title = ?, description = ?, contact_name = ?, contact_phone = ?, location = ?, image_url = ? WHERE id = ?`,
		title, description, contactName, contactPhone, location, imageURL, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

func (s *NoteStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}
