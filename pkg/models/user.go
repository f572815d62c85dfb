package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered board member. Credential issuance and session
// validation live outside this service; the user store is read-mostly and
// exists for assignment enumeration and username denormalization.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email,omitempty" db:"email"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// UserRef is the denormalized user reference embedded in read responses
// and broadcast payloads.
type UserRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Ref returns the denormalized reference for a user.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}
