package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"drive-api/internal/database"

	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, userID int64, buffer int) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		UserID: userID,
	}
}

func TestHub_RegisterPublishUnregister(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, 1, 4)
	b := newTestClient(hub, 1, 4)
	other := newTestClient(hub, 2, 4)

	hub.Register(a)
	hub.Register(b)
	hub.Register(other)
	require.Equal(t, 2, hub.ClientCount(1))

	hub.PublishEvent(1, []byte("hello"))
	require.Equal(t, "hello", string(<-a.send))
	require.Equal(t, "hello", string(<-b.send))
	require.Empty(t, other.send)

	hub.Unregister(a)
	require.Equal(t, 1, hub.ClientCount(1))
	select {
	case <-a.done:
	default:
		t.Fatal("unregistered client should be closed")
	}

	hub.Unregister(b)
	require.Equal(t, 0, hub.ClientCount(1))

	// Publishing to a user without connections is a no-op.
	hub.PublishEvent(1, []byte("nobody"))
}

func TestHub_FullBufferDropsMessage(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, 1, 1)
	hub.Register(c)

	hub.PublishEvent(1, []byte("first"))
	hub.PublishEvent(1, []byte("second"))

	require.Len(t, c.send, 1)
	require.Equal(t, "first", string(<-c.send))
}

func TestHub_DisconnectUser(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, 3, 1)
	b := newTestClient(hub, 3, 1)
	hub.Register(a)
	hub.Register(b)

	hub.DisconnectUser(3)
	require.Equal(t, 0, hub.ClientCount(3))
	for _, c := range []*Client{a, b} {
		select {
		case <-c.done:
		case <-time.After(time.Second):
			t.Fatal("client should be closed")
		}
	}

	// Unregistering after a disconnect is safe.
	hub.Unregister(a)
}

type fakeJournal struct {
	nextID int64
	fail   bool
}

func (j *fakeJournal) LogEvent(ctx context.Context, userID int64, eventType string, payload interface{}) (*database.Event, error) {
	if j.fail {
		return nil, errors.New("db down")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	j.nextID++
	return &database.Event{ID: j.nextID, EventType: eventType, EventTime: time.Now(), Payload: data}, nil
}

func TestNotifier_JournalsAndPublishes(t *testing.T) {
	hub := NewHub()
	c := newTestClient(hub, 5, 4)
	hub.Register(c)

	journal := &fakeJournal{}
	n := NewNotifier(journal, hub)
	n.Notify(context.Background(), 5, "node_created", map[string]string{"id": "abc"})

	var got database.Event
	require.NoError(t, json.Unmarshal(<-c.send, &got))
	require.Equal(t, int64(1), got.ID)
	require.Equal(t, "node_created", got.EventType)
	require.JSONEq(t, `{"id":"abc"}`, string(got.Payload))

	journal.fail = true
	n.Notify(context.Background(), 5, "node_deleted", nil)
	require.Empty(t, c.send, "events that were not journaled are not pushed")
}
