package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordRoundTrip(t *testing.T) {
	passwords := []string{
		"correct-horse-battery-staple",
		"short",
		"pässwörd with ünïcode",
	}

	for _, password := range passwords {
		hash, err := HashPassword(password)
		if err != nil {
			t.Fatalf("HashPassword(%q) error = %v", password, err)
		}

		ok, err := VerifyPassword(password, hash)
		if err != nil {
			t.Fatalf("VerifyPassword(%q) error = %v", password, err)
		}
		if !ok {
			t.Errorf("VerifyPassword(%q) = false against its own hash", password)
		}

		ok, err = VerifyPassword(password+"x", hash)
		if err != nil {
			t.Fatalf("VerifyPassword() error = %v", err)
		}
		if ok {
			t.Errorf("VerifyPassword() = true for a near-miss of %q", password)
		}
	}
}

func TestPasswordHashesAreSalted(t *testing.T) {
	first, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	second, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if first == second {
		t.Error("two hashes of the same password must not share a salt")
	}
}

func TestPasswordHashPHCShape(t *testing.T) {
	hash, err := HashPassword("test")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	fields := strings.Split(hash, "$")
	if len(fields) != phcFieldCount {
		t.Fatalf("hash %q: got %d $-fields, want %d", hash, len(fields), phcFieldCount)
	}
	for i, want := range []string{"argon2id", "v=19", "m=65536,t=3,p=1"} {
		if fields[i+1] != want {
			t.Errorf("field %d = %q, want %q", i+1, fields[i+1], want)
		}
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plain text", "hunter2"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"truncated", "$argon2id$v=19$m=65536,t=3,p=1"},
		{"bad cost field", "$argon2id$v=19$m=lots$c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=65536,t=3,p=1$!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyPassword("password", tt.hash)
			if !errors.Is(err, ErrBadPasswordHash) {
				t.Errorf("VerifyPassword() error = %v, want ErrBadPasswordHash", err)
			}
		})
	}
}
