package model

import (
	"math"
	"time"
)

// Note is a single listing pinned to the board. Type, UserID, UserName,
// Color, CreatedAt, and ExpiresAt are frozen at creation.
type Note struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ContactName  string    `json:"contact_name"`
	ContactPhone string    `json:"contact_phone"`
	Location     string    `json:"location"`
	ImageURL     string    `json:"image_url"`
	Color        string    `json:"color"`
	UserID       int64     `json:"user_id"`
	UserName     string    `json:"user_name"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// DaysRemaining returns the whole days left before the note's advisory
// expiry, rounding partial days up. Zero or negative means expired. Expiry
// is display-only; expired notes are never deleted automatically.
func (n *Note) DaysRemaining(now time.Time) int {
	return int(math.Ceil(n.ExpiresAt.Sub(now).Hours() / 24))
}
