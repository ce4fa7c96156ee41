package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mtaani/noticeboard/internal/model"
)

const verificationTokenTTL = 24 * time.Hour

type VerificationTokenStore struct {
	db *sql.DB
}

func NewVerificationTokenStore(db *sql.DB) *VerificationTokenStore {
	return &VerificationTokenStore{db: db}
}

func scanVerificationToken(scanner interface{ Scan(...any) error }) (*model.VerificationToken, error) {
	var vt model.VerificationToken
	var used int
	err := scanner.Scan(&vt.ID, &vt.Token, &vt.UserID, &used, &vt.ExpiresAt, &vt.CreatedAt)
	if err != nil {
		return nil, err
	}
	vt.Used = used != 0
	return &vt, nil
}

const verificationTokenCols = `id, token, user_id, used, expires_at, created_at`

// Create issues a fresh single-use token for the user.
func (s *VerificationTokenStore) Create(userID int64) (*model.VerificationToken, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)
	expiresAt := time.Now().UTC().Add(verificationTokenTTL)

	result, err := s.db.Exec(
		`INSERT INTO verification_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert verification token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+verificationTokenCols+` FROM verification_tokens WHERE id = ?`, id)
	return scanVerificationToken(row)
}

// GetValid returns the token if it exists, is unused, and has not expired.
func (s *VerificationTokenStore) GetValid(token string) (*model.VerificationToken, error) {
	row := s.db.QueryRow(
		`SELECT `+verificationTokenCols+` FROM verification_tokens
		 WHERE token = ? AND used = 0 AND expires_at > datetime('now')`,
		token,
	)
	vt, err := scanVerificationToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verification token: %w", err)
	}
	return vt, nil
}

func (s *VerificationTokenStore) MarkUsed(id int64) error {
	_, err := s.db.Exec(`UPDATE verification_tokens SET used = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	return nil
}

func (s *VerificationTokenStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM verification_tokens WHERE expires_at <= datetime('now') OR used = 1`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
