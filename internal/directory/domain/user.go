package domain

import "time"

// User is a Duo user mirrored locally. UserID is the Duo natural key, ID the
// local surrogate assigned on first sight.
type User struct {
	ID        string
	UserID    string
	Username  string
	Email     string
	Status    string
	RealName  *string    // nullable
	Notes     string
	LastLogin *time.Time // nullable, converted from epoch seconds
	CreatedAt time.Time
	UpdatedAt time.Time
}
