package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amberhub/amber-core/internal/auth"
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// createUserRequest is the request body for POST /users.
type createUserRequest struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Password    string    `json:"password"`
	Role        auth.Role `json:"role"`
}

// updateUserRequest is the request body for PATCH /users/{id}.
// Pointer fields distinguish "not sent" from zero values.
type updateUserRequest struct {
	DisplayName *string    `json:"display_name,omitempty"`
	Role        *auth.Role `json:"role,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

// setPasswordRequest is the request body for PUT /users/{id}/password.
type setPasswordRequest struct {
	Password string `json:"password"`
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// handleGetUser returns one user account.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		writeInternalError(w, "failed to read user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleCreateUser creates a new user account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !auth.IsValidUsername(req.Username) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid username")
		return
	}
	if !auth.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid role")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "password too short")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeInternalError(w, "failed to hash password")
		return
	}

	user := &auth.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrUsernameExists) {
			writeConflict(w, "username already exists")
			return
		}
		writeInternalError(w, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleUpdateUser applies a partial update to a user account.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		writeInternalError(w, "failed to read user")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		if !auth.IsValidRole(*req.Role) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid role")
			return
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		writeInternalError(w, "failed to update user")
		return
	}

	// Deactivation immediately invalidates existing sessions
	if req.IsActive != nil && !*req.IsActive {
		if err := s.tokens.RevokeAllForUser(r.Context(), user.ID); err != nil {
			s.logger.Error("revoking tokens for deactivated user failed", "user_id", user.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes a user account and revokes its sessions.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Self-deletion would strand the hub without its last admin
	if claims := claimsFrom(r); claims != nil && claims.Subject == id {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "cannot delete your own account")
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		writeInternalError(w, "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSetUserPassword replaces a user's password and revokes all of
// their refresh tokens.
func (s *Server) handleSetUserPassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "password too short")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeInternalError(w, "failed to hash password")
		return
	}

	if err := s.users.UpdatePassword(r.Context(), id, hash); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		writeInternalError(w, "failed to update password")
		return
	}

	if err := s.tokens.RevokeAllForUser(r.Context(), id); err != nil {
		s.logger.Error("revoking tokens after password change failed", "user_id", id, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}
