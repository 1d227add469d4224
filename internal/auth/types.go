package auth

import (
	"errors"
	"regexp"
	"slices"
	"time"
)

// Usernames are alphanumeric plus dot, hyphen and underscore, at most
// 64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

const maxUsernameLength = 64

// IsValidUsername reports whether username is acceptable for a new
// account.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier on the hub.
type Role string

const (
	// RoleViewer can read entity states, devices and automations but
	// change nothing. Dashboards and read-only displays.
	RoleViewer Role = "viewer"

	// RoleUser can operate the house: call services, trigger
	// automations, open covers. Cannot change configuration.
	RoleUser Role = "user"

	// RoleAdmin has full control: automations, devices, users and
	// system settings. The API controls physical hardware, so admin
	// credentials deserve the same care as door keys.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of assignable user roles.
var ValidRoles = []Role{RoleViewer, RoleUser, RoleAdmin}

// IsValidRole reports whether r can be assigned to a user account.
func IsValidRole(r Role) bool {
	return slices.Contains(ValidRoles, r)
}

// User represents an authenticated account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken represents a stored refresh token for session management.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FamilyID  string    `json:"family_id"`
	TokenHash string    `json:"-"` // never serialised
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrUsernameExists     = errors.New("username already exists")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenReuse         = errors.New("refresh token reuse detected")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrBadPasswordHash    = errors.New("malformed password hash")
)
