package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Logger is the minimal logging interface the auth package needs.
type Logger interface {
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// SeedAdmin creates the initial admin account when the user table is
// empty. The generated password is logged once at startup and must be
// changed after first login. Returns the created user, or nil when
// seeding was not needed.
func SeedAdmin(ctx context.Context, repo UserRepository, logger Logger) (*User, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return nil, nil
	}

	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("generating admin password: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing admin password: %w", err)
	}

	admin := &User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         RoleAdmin,
		IsActive:     true,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("creating admin user: %w", err)
	}

	logger.Warn("seeded initial admin account",
		"username", admin.Username,
		"password", password,
		"action_required", "change this password after first login")

	return admin, nil
}

func generatePassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
