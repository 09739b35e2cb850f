package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/events"
	"github.com/matheus3301/smsdash/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, *bus.Bus, string) {
	t.Helper()
	b := bus.New()
	h := NewHub(b, zap.NewNop())
	h.Start(context.Background())
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Stop()
		srv.Close()
	})
	return h, b, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) events.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f events.Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestBroadcastToAllClients(t *testing.T) {
	h, b, url := startHub(t)
	c1 := dial(t, url)
	c2 := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 2 }, time.Second, 10*time.Millisecond)

	msg := store.Message{ID: "SM1", From: "+1a", To: "+1us", Body: "hi", Direction: store.Inbound}
	b.Publish(events.NewMessageEvent("+1a", msg))

	for _, c := range []*websocket.Conn{c1, c2} {
		f := readFrame(t, c)
		assert.Equal(t, events.TypeNewMessage, f.Type)
		assert.Equal(t, "+1a", f.PhoneNumber)
		require.NotNil(t, f.Message)
		assert.Equal(t, "SM1", f.Message.ID)
		assert.NotEmpty(t, f.ID)
	}
}

func TestEventOrderPreserved(t *testing.T) {
	h, b, url := startHub(t)
	c := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	b.Publish(events.NewMessageEvent("+1a", store.Message{ID: "SM1", From: "+1a"}))
	b.Publish(events.ConversationDeletedEvent("+1a"))

	assert.Equal(t, events.TypeNewMessage, readFrame(t, c).Type)
	f := readFrame(t, c)
	assert.Equal(t, events.TypeConversationDeleted, f.Type)
	assert.Nil(t, f.Message)
}

func TestEventsWithoutFrameNotSent(t *testing.T) {
	h, b, url := startHub(t)
	c := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	b.Publish(bus.Event{Kind: "daemon.status_changed", Payload: "READY"})
	b.Publish(bus.Event{Kind: "outbox.forward_sent", Payload: "SM1"})
	b.Publish(events.ConversationDeletedEvent("+1b"))

	f := readFrame(t, c)
	assert.Equal(t, events.TypeConversationDeleted, f.Type)
}

func TestSyncCompletedReachesClients(t *testing.T) {
	h, b, url := startHub(t)
	c := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	b.Publish(events.NewMessageEvent("+1a", store.Message{ID: "SM1", From: "+1a"}))
	b.Publish(bus.Event{Kind: events.KindSyncCompleted, Timestamp: time.Now(),
		Payload: events.SyncCompleted{Conversations: 3, Messages: 7, FromSnapshot: true}})

	assert.Equal(t, events.TypeNewMessage, readFrame(t, c).Type)
	f := readFrame(t, c)
	assert.Equal(t, events.TypeSyncCompleted, f.Type)
	assert.Equal(t, 3, f.Conversations)
	assert.Equal(t, 7, f.Messages)
	assert.True(t, f.FromSnapshot)
}

func TestRegistryUsableDuringBroadcast(t *testing.T) {
	h, _, url := startHub(t)
	c1 := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	// Stand-in for a broadcast stuck on a slow client.
	h.writeMu.Lock()
	sent := make(chan struct{})
	go func() {
		h.Broadcast([]byte(`{"type":"conversation-deleted","phoneNumber":"+1a"}`))
		close(sent)
	}()

	c2 := dial(t, url)
	assert.Eventually(t, func() bool { return h.Count() == 2 }, time.Second, 10*time.Millisecond)
	h.writeMu.Unlock()

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never completed")
	}
	assert.Equal(t, events.TypeConversationDeleted, readFrame(t, c1).Type)
	assert.Equal(t, events.TypeConversationDeleted, readFrame(t, c2).Type)
}

func TestBroadcastDropsFailedClient(t *testing.T) {
	h, _, url := startHub(t)
	dead := dial(t, url)
	live := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 2 }, time.Second, 10*time.Millisecond)

	_ = dead.NetConn().Close()
	h.Broadcast([]byte(`{"type":"conversation-deleted","phoneNumber":"+1a"}`))

	assert.Equal(t, events.TypeConversationDeleted, readFrame(t, live).Type)
	assert.Eventually(t, func() bool { return h.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestDisconnectUnregisters(t *testing.T) {
	h, _, url := startHub(t)
	c := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.Close()
	assert.Eventually(t, func() bool { return h.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestLateClientMissesEarlierEvents(t *testing.T) {
	h, b, url := startHub(t)
	b.Publish(events.ConversationDeletedEvent("+1early"))
	time.Sleep(20 * time.Millisecond)

	c := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)
	b.Publish(events.ConversationDeletedEvent("+1late"))

	assert.Equal(t, "+1late", readFrame(t, c).PhoneNumber)
}

func TestStopClosesClients(t *testing.T) {
	b := bus.New()
	h := NewHub(b, nil)
	h.Start(context.Background())
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	h.Stop()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.Count())
}
