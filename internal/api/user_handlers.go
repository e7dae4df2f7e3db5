package api

import (
	"encoding/json"
	"net/http"

	"drive-api/internal/auth"
	"drive-api/internal/database"

	_ "drive-api/internal/models"
	_ "drive-api/internal/tree"
)

// @Summary      Get current user info
// @Description  Retrieves the profile of the currently authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "User not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to retrieve user data", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=128" example:"Alice"`
}

// @Summary      Update profile
// @Description  Sets or clears the display name of the current user.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        profile  body      UpdateProfileRequest  true  "New profile values"
// @Success      200      {object}  models.User
// @Failure      400      {string}  string "Invalid request body"
// @Failure      401      {string}  string "Unauthorized"
// @Failure      404      {string}  string "User not found"
// @Failure      500      {string}  string "Internal Server Error"
// @Router       /me [put]
func (s *Server) UpdateCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := s.store.UpdateDisplayName(r.Context(), claims.UserID, req.DisplayName)
	if err != nil {
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required" example:"password123"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72" example:"n3w-password"`
}

// @Summary      Change password
// @Description  Replaces the password of the current user and terminates all of their sessions.
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        passwords  body      ChangePasswordRequest  true  "Current and new password"
// @Success      204        {null}    nil "No Content"
// @Failure      400        {string}  string "Invalid request body"
// @Failure      401        {string}  string "Current password is incorrect"
// @Failure      500        {string}  string "Internal Server Error"
// @Router       /me/password [put]
func (s *Server) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to retrieve user data", http.StatusInternalServerError)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		http.Error(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	err = s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		if err := q.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
			return err
		}
		return q.DeleteAllSessionsForUser(r.Context(), user.ID)
	})
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to change password")
		http.Error(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Delete account
// @Description  Deletes every node and stored file of the current user, then the account itself, and closes their live connections.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  tree.DeleteResult
// @Failure      401  {string}  string "Unauthorized"
// @Failure      409  {string}  string "Folder hierarchy contains a cycle"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /me [delete]
func (s *Server) DeleteCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	result, err := s.tree.DeleteAll(r.Context(), claims.UserID)
	if err != nil {
		s.writeTreeError(w, r, err, "Failed to delete account data")
		return
	}

	if _, err := s.store.DeleteUser(r.Context(), claims.UserID); err != nil {
		s.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to delete user")
		http.Error(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}
	s.wsHub.DisconnectUser(claims.UserID)

	s.log.Info().Int64("user_id", claims.UserID).Int("deleted_nodes", result.Nodes).Msg("Account deleted")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
