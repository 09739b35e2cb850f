// Package relay republishes bus events to an AMQP exchange for other services.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/events"
	"go.uber.org/zap"
)

// publishTimeout bounds a single broker write.
const publishTimeout = 5 * time.Second

// Envelope is the message body written to the exchange.
type Envelope struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// Marshal encodes e as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Wrap builds the envelope for evt. Conversation and sync events carry their
// live channel frame; anything else carries the raw payload.
func Wrap(evt bus.Event) Envelope {
	env := Envelope{ID: uuid.NewString(), Kind: evt.Kind, OccurredAt: evt.Timestamp, Payload: evt.Payload}
	if frame, ok := events.ToFrame(evt); ok {
		env.ID = frame.ID
		env.Payload = frame
	}
	return env
}

// Relay forwards every bus event to a Publisher. Publish failures are logged
// and the event is dropped.
type Relay struct {
	pub    Publisher
	bus    *bus.Bus
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a relay over pub.
func New(pub Publisher, b *bus.Bus, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{pub: pub, bus: b, logger: logger}
}

// Start subscribes to all bus events.
func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("", 256)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.forward(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Relay) forward(ctx context.Context, evt bus.Event) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.pub.Publish(ctx, evt.Kind, Wrap(evt)); err != nil {
		r.logger.Warn("relay publish failed", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

// Stop ends the loop and closes the publisher.
func (r *Relay) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	return r.pub.Close()
}
