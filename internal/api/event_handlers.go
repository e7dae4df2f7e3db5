package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"drive-api/internal/database"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

type EventResponse struct {
	ID        int64           `json:"id" example:"123"`
	EventType string          `json:"event_type" example:"node_created"`
	EventTime time.Time       `json:"event_time"`
	Payload   json.RawMessage `json:"payload" swaggertype:"object"`
}

// @Summary      Get new events
// @Description  Retrieves events that occurred after a given event ID, oldest first. Clients that missed websocket messages use it to catch up.
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        since  query     int  false  "The ID of the last event received. Omit or use 0 to get all events."
// @Param        limit  query     int  false  "Maximum number of events to return (1-500, default 100)"
// @Success      200    {array}   EventResponse
// @Failure      400    {string}  string "Bad Request"
// @Failure      401    {string}  string "Unauthorized"
// @Failure      500    {string}  string "Internal Server Error"
// @Router       /events [get]
func (s *Server) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sinceID, err := queryInt(r, "since", 0)
	if err != nil || sinceID < 0 {
		http.Error(w, "Invalid 'since' parameter, must be a non-negative number", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", defaultEventLimit)
	if err != nil || limit < 1 || limit > maxEventLimit {
		http.Error(w, "Invalid 'limit' parameter, must be between 1 and 500", http.StatusBadRequest)
		return
	}

	events, err := s.store.GetEventsSince(r.Context(), claims.UserID, sinceID, int(limit))
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to retrieve events")
		http.Error(w, "Failed to retrieve events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEventResponses(events))
}

func toEventResponses(events []database.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse(e))
	}
	return out
}

func queryInt(r *http.Request, key string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
