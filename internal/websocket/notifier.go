package websocket

import (
	"context"
	"encoding/json"

	"drive-api/internal/database"
	"drive-api/internal/logging"
	"drive-api/internal/tree"
)

type EventJournal interface {
	LogEvent(ctx context.Context, userID int64, eventType string, payload interface{}) (*database.Event, error)
}

// Notifier writes tree events to the journal and pushes the stored event to
// the user's live connections.
type Notifier struct {
	journal EventJournal
	hub     *Hub
	log     logging.Logger
}

var _ tree.Notifier = (*Notifier)(nil)

func NewNotifier(journal EventJournal, hub *Hub) *Notifier {
	return &Notifier{
		journal: journal,
		hub:     hub,
		log:     logging.Component("events"),
	}
}

func (n *Notifier) Notify(ctx context.Context, ownerID int64, eventType string, payload any) {
	event, err := n.journal.LogEvent(ctx, ownerID, eventType, payload)
	if err != nil {
		n.log.Error().Err(err).Int64("user_id", ownerID).Str("event_type", eventType).Msg("Failed to log event")
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		n.log.Error().Err(err).Int64("event_id", event.ID).Msg("Failed to marshal event")
		return
	}
	n.hub.PublishEvent(ownerID, data)
}
