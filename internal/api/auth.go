package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/amberhub/amber-core/internal/auth"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is the response body for login and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// refreshRequest is the request body for POST /auth/refresh and /auth/logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleLogin authenticates a user against the user database and issues
// an access/refresh token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		// Same response as a wrong password so usernames cannot be probed
		writeUnauthorized(w, "invalid credentials")
		return
	}
	if !user.IsActive {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	resp, err := s.issueTokens(r.Context(), user, "")
	if err != nil {
		s.logger.Error("issuing tokens failed", "user", user.Username, "error", err)
		writeInternalError(w, "failed to issue tokens")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh exchanges a valid refresh token for a new token pair.
// The old refresh token is revoked (rotation). Reuse of an already
// rotated token revokes the whole family.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	stored, err := s.tokens.GetByTokenHash(r.Context(), auth.HashToken(req.RefreshToken))
	if err != nil {
		writeUnauthorized(w, "invalid refresh token")
		return
	}

	if stored.Revoked {
		// Token theft signal: someone replayed a rotated token.
		// Kill the whole family so neither party keeps a session.
		if err := s.tokens.RevokeFamily(r.Context(), stored.FamilyID); err != nil {
			s.logger.Error("revoking token family failed", "family", stored.FamilyID, "error", err)
		}
		s.logger.Warn("refresh token reuse detected", "user_id", stored.UserID, "family", stored.FamilyID)
		writeUnauthorized(w, "invalid refresh token")
		return
	}

	if time.Now().After(stored.ExpiresAt) {
		writeUnauthorized(w, "refresh token expired")
		return
	}

	user, err := s.users.GetByID(r.Context(), stored.UserID)
	if err != nil || !user.IsActive {
		writeUnauthorized(w, "invalid refresh token")
		return
	}

	resp, err := s.rotateTokens(r.Context(), user, stored)
	if err != nil {
		s.logger.Error("rotating tokens failed", "user", user.Username, "error", err)
		writeInternalError(w, "failed to issue tokens")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLogout revokes the caller's refresh token. The access token
// remains valid until expiry; clients should discard it.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	stored, err := s.tokens.GetByTokenHash(r.Context(), auth.HashToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			// Already gone; logout is idempotent
			writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
			return
		}
		writeInternalError(w, "logout failed")
		return
	}

	if err := s.tokens.Revoke(r.Context(), stored.ID); err != nil {
		writeInternalError(w, "logout failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// handleMe returns the authenticated caller's account and permissions.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	user, err := s.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		writeUnauthorized(w, "account no longer exists")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"permissions": auth.PermissionsForRole(user.Role),
	})
}

// issueTokens creates a fresh access/refresh token pair for a user.
// A non-empty familyID keeps the new refresh token in an existing family.
func (s *Server) issueTokens(ctx context.Context, user *auth.User, familyID string) (*tokenResponse, error) {
	access, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	raw, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshTTL := s.secCfg.JWT.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 1440 //nolint:mnd // default 24-hour refresh token TTL
	}

	stored := &auth.RefreshToken{
		UserID:    user.ID,
		FamilyID:  familyID,
		TokenHash: auth.HashToken(raw),
		ExpiresAt: time.Now().Add(time.Duration(refreshTTL) * time.Minute),
	}
	if err := s.tokens.Create(ctx, stored); err != nil {
		return nil, err
	}

	return s.tokenResponseFor(access, raw), nil
}

// rotateTokens revokes the old refresh token and issues a replacement
// in the same family, atomically.
func (s *Server) rotateTokens(ctx context.Context, user *auth.User, old *auth.RefreshToken) (*tokenResponse, error) {
	access, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	raw, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshTTL := s.secCfg.JWT.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 1440 //nolint:mnd // default 24-hour refresh token TTL
	}

	replacement := &auth.RefreshToken{
		UserID:    user.ID,
		FamilyID:  old.FamilyID,
		TokenHash: auth.HashToken(raw),
		ExpiresAt: time.Now().Add(time.Duration(refreshTTL) * time.Minute),
	}
	if err := s.tokens.Rotate(ctx, old.ID, replacement); err != nil {
		return nil, err
	}

	return s.tokenResponseFor(access, raw), nil
}

func (s *Server) tokenResponseFor(access, refresh string) *tokenResponse {
	ttl := s.secCfg.JWT.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 //nolint:mnd // default 15-minute access token TTL
	}
	return &tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    ttl * 60, //nolint:mnd // minutes to seconds
	}
}

// ─── WebSocket tickets ───────────────────────────────────────────────

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use, expire after ticketTTL and carry the identity
// of the user that requested them.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	expiresAt time.Time
	userID    string
	role      auth.Role
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	ticket := generateTicket()

	s.tickets.mu.Lock()
	s.tickets.tickets[ticket] = ticketEntry{
		expiresAt: time.Now().Add(ticketTTL),
		userID:    claims.Subject,
		role:      claims.Role,
	}
	s.tickets.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// validateTicket checks if a ticket is valid and consumes it (single-use).
func (s *Server) validateTicket(ticket string) (ticketEntry, bool) {
	s.tickets.mu.Lock()
	defer s.tickets.mu.Unlock()

	entry, ok := s.tickets.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}

	// Remove ticket (single-use)
	delete(s.tickets.tickets, ticket)

	if time.Now().After(entry.expiresAt) {
		return ticketEntry{}, false
	}
	return entry, true
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop removes expired tickets periodically until the context
// is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.mu.Lock()
			now := time.Now()
			for ticket, entry := range s.tickets.tickets {
				if now.After(entry.expiresAt) {
					delete(s.tickets.tickets, ticket)
				}
			}
			s.tickets.mu.Unlock()
		}
	}
}
