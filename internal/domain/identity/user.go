// Package identity holds the two independent identity spaces of the platform:
// staff/admin users and students. A Student is not a kind of User.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Role is the access role of a platform user.
type Role string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// ParseRole normalizes free-form input ("  Admin ") into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// UserStatus is the account status of a platform user.
// Users are never hard-deleted; they are deactivated instead.
type UserStatus string

const (
	UserStatusActive   UserStatus = "Active"
	UserStatusInactive UserStatus = "Inactive"
)

// IsValid reports whether s is a known user status.
func (s UserStatus) IsValid() bool {
	return s == UserStatusActive || s == UserStatusInactive
}

// ══════════════════════════════════════════════════════════════════════════════
// USER
// ══════════════════════════════════════════════════════════════════════════════

// User is a staff or admin account.
type User struct {
	UserID       string
	Email        string
	FullName     string
	Role         Role
	Status       UserStatus
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUserParams holds the inputs of NewUser.
type NewUserParams struct {
	Email        string
	FullName     string
	Role         Role
	Status       UserStatus
	PasswordHash string
}

// NewUser builds a user with a fresh identifier and defaults applied.
// The email is trimmed and lower-cased before it is stored; lookups after that
// compare the stored value exactly.
func NewUser(p NewUserParams) *User {
	now := time.Now().UTC()
	role := p.Role
	if role == "" {
		role = RoleUser
	}
	status := p.Status
	if status == "" {
		status = UserStatusActive
	}
	return &User{
		UserID:       NewUserID(),
		Email:        NormalizeEmail(p.Email),
		FullName:     strings.TrimSpace(p.FullName),
		Role:         role,
		Status:       status,
		PasswordHash: p.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsActive reports whether the account can be used.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Deactivate flips the account to Inactive.
func (u *User) Deactivate() {
	u.Status = UserStatusInactive
	u.UpdatedAt = time.Now().UTC()
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUserID returns an externally visible user identifier ("US" + 10 hex chars).
func NewUserID() string {
	return "US" + randomHex(5)
}

// NewStudentID returns an externally visible student identifier ("STU" + 10 hex chars).
func NewStudentID() string {
	return "STU" + randomHex(5)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("identity: crypto/rand failed: " + err.Error())
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
