package websocket

import (
	"net/http"

	"drive-api/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type clientSet = *xsync.Map[*Client, struct{}]

// Hub tracks the connected clients of every user and fans events out to
// them.
type Hub struct {
	clients *xsync.Map[int64, clientSet]
	log     logging.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: xsync.NewMap[int64, clientSet](),
		log:     logging.Component("ws-hub"),
	}
}

func (h *Hub) Register(client *Client) {
	h.clients.Compute(client.UserID, func(set clientSet, loaded bool) (clientSet, xsync.ComputeOp) {
		if !loaded {
			set = xsync.NewMap[*Client, struct{}]()
		}
		set.Store(client, struct{}{})
		return set, xsync.UpdateOp
	})
	h.log.Debug().Int64("user_id", client.UserID).Msg("Client registered")
}

func (h *Hub) Unregister(client *Client) {
	h.clients.Compute(client.UserID, func(set clientSet, loaded bool) (clientSet, xsync.ComputeOp) {
		if !loaded {
			return set, xsync.CancelOp
		}
		set.Delete(client)
		if set.Size() == 0 {
			return set, xsync.DeleteOp
		}
		return set, xsync.UpdateOp
	})
	client.close()
	h.log.Debug().Int64("user_id", client.UserID).Msg("Client unregistered")
}

// ClientCount reports how many connections the user has open.
func (h *Hub) ClientCount(userID int64) int {
	set, ok := h.clients.Load(userID)
	if !ok {
		return 0
	}
	return set.Size()
}

// PublishEvent queues eventData for every connection of the user. Slow
// clients whose buffer is full miss the message and can catch up through the
// event journal.
func (h *Hub) PublishEvent(userID int64, eventData []byte) {
	set, ok := h.clients.Load(userID)
	if !ok {
		return
	}
	set.Range(func(client *Client, _ struct{}) bool {
		if !client.enqueue(eventData) {
			h.log.Warn().Int64("user_id", userID).Msg("Client send buffer is full, dropping message")
		}
		return true
	})
}

// DisconnectUser closes every connection of the user, e.g. after the account
// is deleted.
func (h *Hub) DisconnectUser(userID int64) {
	set, ok := h.clients.LoadAndDelete(userID)
	if !ok {
		return
	}
	set.Range(func(client *Client, _ struct{}) bool {
		client.close()
		return true
	})
}
