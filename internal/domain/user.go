package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role of a user
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// BirthdayLayout is the wire and storage format of birthdays
const BirthdayLayout = "2006-01-02"

// User represents a registered account
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	FirstName     string    `json:"first_name" db:"first_name"`
	LastName      string    `json:"last_name" db:"last_name"`
	Birthday      time.Time `json:"birthday" db:"birthday"`
	Gender        string    `json:"gender" db:"gender"`
	Address       string    `json:"address" db:"address"`
	ContactNumber string    `json:"contact_number" db:"contact_number"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	Role          Role      `json:"role" db:"role"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// FullName joins first and last name the way orders display the customer
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Snapshot copies the profile fields an order keeps at checkout time
func (u *User) Snapshot() CustomerSnapshot {
	birthday := u.Birthday
	return CustomerSnapshot{
		Name:     u.FullName(),
		Email:    u.Email,
		Address:  u.Address,
		Contact:  u.ContactNumber,
		Birthday: &birthday,
		Gender:   u.Gender,
	}
}

// SessionToken is the server-side record behind a bearer token
type SessionToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}

// Active reports whether the token can still authenticate requests at now
func (t *SessionToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Identity is the authenticated caller of a request
type Identity struct {
	UserID  uuid.UUID
	Role    Role
	TokenID uuid.UUID
}

// IsAdmin reports whether the caller holds the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccess reports whether the caller may read data owned by ownerID
func (i Identity) CanAccess(ownerID uuid.UUID) bool {
	return i.IsAdmin() || i.UserID == ownerID
}
