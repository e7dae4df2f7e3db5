package api

import (
	"errors"
	"net/http"

	"drive-api/internal/auth"
	"drive-api/internal/tree"
)

// treeErrorStatus maps service errors to a status code and the message sent
// to the client.
func treeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, tree.ErrNotFound):
		return http.StatusNotFound, "Node not found"
	case errors.Is(err, tree.ErrConflict):
		return http.StatusConflict, tree.ErrConflict.Error()
	case errors.Is(err, tree.ErrCycleDetected):
		return http.StatusConflict, tree.ErrCycleDetected.Error()
	case errors.Is(err, tree.ErrInvalidName),
		errors.Is(err, tree.ErrNotAFolder),
		errors.Is(err, tree.ErrNotAFile):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, tree.ErrStorageFailure):
		return http.StatusBadGateway, "Storage backend unavailable"
	default:
		return http.StatusInternalServerError, ""
	}
}

func (s *Server) writeTreeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := treeErrorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	}
	if msg == "" {
		msg = fallback
	}
	http.Error(w, msg, status)
}
