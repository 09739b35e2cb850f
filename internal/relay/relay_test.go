package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/events"
	"github.com/matheus3301/smsdash/internal/store"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key string
	env Envelope
}

type fakePublisher struct {
	mu     sync.Mutex
	got    []published
	err    error
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, key string, env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, published{key: key, env: env})
	return f.err
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.got...)
}

func TestRelayForwardsEvents(t *testing.T) {
	b := bus.New()
	pub := &fakePublisher{}
	r := New(pub, b, nil)
	r.Start(context.Background())

	b.Publish(events.NewMessageEvent("+1a", store.Message{ID: "SM1", From: "+1a"}))
	b.Publish(bus.Event{Kind: "outbox.forward_sent", Timestamp: time.Now(), Payload: map[string]string{"to": "+1owner"}})

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	got := pub.snapshot()

	assert.Equal(t, events.KindNewMessage, got[0].key)
	frame, ok := got[0].env.Payload.(events.Frame)
	require.True(t, ok, "conversation events carry their frame")
	assert.Equal(t, frame.ID, got[0].env.ID)
	assert.Equal(t, "+1a", frame.PhoneNumber)

	assert.Equal(t, "outbox.forward_sent", got[1].key)
	assert.NotEmpty(t, got[1].env.ID)

	require.NoError(t, r.Stop())
	assert.True(t, pub.closed)
}

func TestRelayPublishErrorDoesNotStopLoop(t *testing.T) {
	b := bus.New()
	pub := &fakePublisher{err: errors.New("channel closed")}
	r := New(pub, b, nil)
	r.Start(context.Background())
	defer func() { _ = r.Stop() }()

	b.Publish(events.ConversationDeletedEvent("+1a"))
	b.Publish(events.ConversationDeletedEvent("+1b"))
	assert.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
}

func TestEnvelopeMarshal(t *testing.T) {
	env := Wrap(events.ConversationDeletedEvent("+1a"))
	data, err := env.Marshal()
	require.NoError(t, err)

	var decoded struct {
		Kind    string `json:"kind"`
		Payload struct {
			Type        string `json:"type"`
			PhoneNumber string `json:"phoneNumber"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, events.KindConversationDeleted, decoded.Kind)
	assert.Equal(t, events.TypeConversationDeleted, decoded.Payload.Type)
	assert.Equal(t, "+1a", decoded.Payload.PhoneNumber)
}

func TestFallbackSkips(t *testing.T) {
	p := NewFallback(nil)
	require.NoError(t, p.Publish(context.Background(), "k", Envelope{}))
	assert.Equal(t, int64(1), p.Skipped())
	assert.NoError(t, p.Close())
}

func stubDial(t *testing.T, fn func(string) (*amqp091.Connection, error)) {
	t.Helper()
	orig := dialFunc
	dialFunc = fn
	t.Cleanup(func() { dialFunc = orig })
}

func TestDialWithRetryGivesUp(t *testing.T) {
	attempts := 0
	stubDial(t, func(string) (*amqp091.Connection, error) {
		attempts++
		return nil, errors.New("connection refused")
	})

	_, err := DialWithRetry(context.Background(), ConnectionOptions{
		URL: "amqp://nowhere", RetryAttempts: 3, Delay: time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDialWithRetryHonorsContext(t *testing.T) {
	stubDial(t, func(string) (*amqp091.Connection, error) {
		return nil, errors.New("connection refused")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DialWithRetry(ctx, ConnectionOptions{URL: "amqp://nowhere", RetryAttempts: 5, Delay: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
}
