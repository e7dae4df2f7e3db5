package api

import (
	"errors"
	"io"
	"net/http"
	"os"

	"drive-api/internal/storage"

	"github.com/go-chi/chi/v5"
)

// ServeBlobHandler streams stored content by its public path
// /uploads/{owner}/{blob}. The path is the URL handed out in listings, and
// the random blob key is what keeps it private.
func (s *Server) ServeBlobHandler(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "blob")

	content, err := s.blobs.Open(r.Context(), ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrInvalidRef) {
			http.NotFound(w, r)
			return
		}
		s.log.Error().Err(err).Str("ref", ref).Msg("Failed to open blob")
		http.Error(w, "Storage backend unavailable", http.StatusBadGateway)
		return
	}
	defer content.Close()

	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, content); err != nil {
		s.log.Warn().Err(err).Str("ref", ref).Msg("Blob transfer interrupted")
	}
}
