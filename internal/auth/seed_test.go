package auth

import (
	"context"
	"testing"
)

type recordingLogger struct {
	warns []string
}

func (l *recordingLogger) Info(string, ...any)       {}
func (l *recordingLogger) Warn(msg string, _ ...any) { l.warns = append(l.warns, msg) }

func TestSeedAdmin_EmptyDatabase(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	logger := &recordingLogger{}

	admin, err := SeedAdmin(context.Background(), repo, logger)
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if admin == nil {
		t.Fatal("SeedAdmin() should create an admin on an empty database")
	}

	if admin.Username != "admin" {
		t.Errorf("Username = %q, want %q", admin.Username, "admin")
	}
	if admin.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", admin.Role, RoleAdmin)
	}
	if !admin.IsActive {
		t.Error("seeded admin should be active")
	}
	if len(logger.warns) == 0 {
		t.Error("seeding should log the generated credential")
	}

	got, err := repo.GetByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.PasswordHash == "" {
		t.Error("seeded admin should have a password hash")
	}
}

func TestSeedAdmin_SkipsWhenUsersExist(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	seedTestUser(t, db, "existing", RoleUser)

	admin, err := SeedAdmin(context.Background(), repo, nil)
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if admin != nil {
		t.Error("SeedAdmin() should be a no-op when users already exist")
	}

	count, _ := repo.Count(context.Background())
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}
