package auth

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"
)

const testSigningSecret = "test-secret-key-for-jwt-signing"

func TestAccessTokenRoundTrip(t *testing.T) {
	user := &User{ID: "usr-001", Role: RoleAdmin}

	token, err := GenerateAccessToken(user, testSigningSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}

	claims, err := ParseToken(token, testSigningSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != user.ID {
		t.Errorf("Subject = %q, want %q", claims.Subject, user.ID)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", claims.Role, RoleAdmin)
	}
	if claims.SessionID == "" {
		t.Error("SessionID should not be empty")
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
	if claims.ExpiresAt.Time.Before(time.Now()) {
		t.Error("newly generated token should not be expired")
	}
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	user := &User{ID: "usr-001", Role: RoleUser}
	signed, err := GenerateAccessToken(user, testSigningSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", signed, "some-other-secret"},
		{"empty token", "", testSigningSecret},
		{"two segments", "abc.def", testSigningSecret},
		{"not a jwt", "not-a-valid-jwt", testSigningSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestParseTokenRequiresRole(t *testing.T) {
	// Tokens are only minted for loaded users, but a claims check on
	// parse keeps a role-less token from slipping through.
	token, err := GenerateAccessToken(&User{ID: "usr-002"}, testSigningSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	if _, err := ParseToken(token, testSigningSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() without role should return ErrTokenInvalid, got %v", err)
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	raw, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	if _, err := hex.DecodeString(raw); err != nil || len(raw) != 64 {
		t.Errorf("token = %q, want 64 hex chars", raw)
	}

	second, _ := GenerateRefreshToken()
	if raw == second {
		t.Error("two refresh tokens should be unique")
	}
}

func TestHashToken(t *testing.T) {
	h := HashToken("same-input")
	if h != HashToken("same-input") {
		t.Error("HashToken should be deterministic")
	}
	if h == HashToken("different-input") {
		t.Error("different inputs should produce different hashes")
	}
	if len(h) != 64 || strings.ToLower(h) != h {
		t.Errorf("hash = %q, want 64 lowercase hex chars", h)
	}
}
