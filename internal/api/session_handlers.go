package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"drive-api/internal/models"
)

// @Summary      List signed-in devices
// @Description  Returns the caller's live refresh sessions, newest first. Refresh tokens are never included.
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.Session
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /sessions [get]
func (s *Server) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sessions, err := s.store.ListSessionsForUser(r.Context(), claims.UserID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to list sessions")
		http.Error(w, "Failed to retrieve sessions", http.StatusInternalServerError)
		return
	}

	// The purge job runs on a schedule, so a row may outlive its expiry by a
	// few seconds between the query and now.
	now := time.Now()
	live := make([]models.Session, 0, len(sessions))
	for i := range sessions {
		if !sessions[i].Expired(now) {
			live = append(live, sessions[i])
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(live)
}

// @Summary      Sign out one device
// @Description  Revokes a single refresh session. Sessions of other users are reported as missing.
// @Tags         sessions
// @Security     BearerAuth
// @Param        sessionId  path      string  true  "Session ID" format(uuid)
// @Success      204        {null}    nil     "No Content"
// @Failure      400        {string}  string "Invalid session ID format"
// @Failure      401        {string}  string "Unauthorized"
// @Failure      404        {string}  string "Session not found"
// @Failure      500        {string}  string "Internal Server Error"
// @Router       /sessions/{sessionId} [delete]
func (s *Server) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		http.Error(w, "Invalid session ID format", http.StatusBadRequest)
		return
	}

	deleted, err := s.store.DeleteSessionByID(r.Context(), sessionID, claims.UserID)
	switch {
	case err != nil:
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to revoke session")
		http.Error(w, "Failed to delete session", http.StatusInternalServerError)
	case !deleted:
		http.Error(w, "Session not found", http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary      Sign out everywhere
// @Description  Revokes every refresh session of the caller. Access tokens already issued stay valid until they expire.
// @Tags         sessions
// @Security     BearerAuth
// @Success      204  {null}    nil "No Content"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /sessions/terminate_all [post]
func (s *Server) TerminateAllSessionsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	if err := s.store.DeleteAllSessionsForUser(r.Context(), claims.UserID); err != nil {
		s.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to revoke sessions")
		http.Error(w, "Failed to terminate all sessions", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
