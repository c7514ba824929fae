package entity

import (
	"time"
)

// User is the aggregate root for the accounts domain.
// PasswordHash holds a bcrypt hash, never the plain password.
//
// IsActive starts false at registration and flips to true only through a
// verified activation token.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
