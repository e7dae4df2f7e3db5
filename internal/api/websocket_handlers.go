package api

import (
	"net/http"

	"drive-api/internal/websocket"
)

// ServeWsHandler upgrades the connection and subscribes it to the user's
// events. Browsers cannot set headers on a websocket handshake, so the
// access token travels in the query string.
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "Token is required", http.StatusUnauthorized)
		return
	}

	claims, err := s.guard.Verify(tokenString)
	if err != nil {
		s.log.Debug().Err(err).Msg("WS connection attempt with invalid token")
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := websocket.NewClient(s.wsHub, conn, claims.UserID)
	s.wsHub.Register(client)

	go client.ReadPump()
	go client.WritePump()
}
