// Package outbox delivers owner notifications off the webhook's request path.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/provider"
	"go.uber.org/zap"
)

// Bus kinds published after each delivery attempt.
const (
	KindForwardSent   = "outbox.forward_sent"
	KindForwardFailed = "outbox.forward_failed"
)

// DefaultQueueSize bounds how many forwards may wait for delivery.
const DefaultQueueSize = 64

// TextSender sends one text message through the provider.
type TextSender interface {
	Send(ctx context.Context, to, body string) (provider.Sent, error)
}

// Entry is one queued notification.
type Entry struct {
	To   string
	Body string
	// Origin is the inbound message id that caused the forward.
	Origin string
}

// Result is the payload of the delivery events.
type Result struct {
	Entry
	SID   string
	Error string
}

// Sender drains the queue and sends each entry via the provider.
type Sender struct {
	sender  TextSender
	bus     *bus.Bus
	logger  *zap.Logger
	timeout time.Duration

	queue  chan Entry
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSender creates a new outbox sender. Each send is bounded by timeout.
func NewSender(sender TextSender, b *bus.Bus, queueSize int, timeout time.Duration, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Sender{
		sender:  sender,
		bus:     b,
		logger:  logger,
		timeout: timeout,
		queue:   make(chan Entry, queueSize),
	}
}

// Enqueue schedules e for delivery without blocking. It reports false when the
// queue is full and the entry was dropped.
func (s *Sender) Enqueue(e Entry) bool {
	select {
	case s.queue <- e:
		return true
	default:
		s.logger.Warn("outbox full, forward dropped", zap.String("to", e.To), zap.String("origin", e.Origin))
		return false
	}
}

// Start begins draining the queue.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop stops the loop after delivering whatever is already queued.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sender) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case e := <-s.queue:
			s.deliver(e)
		case <-ctx.Done():
			s.drain()
			return
		}
	}
}

func (s *Sender) drain() {
	for {
		select {
		case e := <-s.queue:
			s.deliver(e)
		default:
			return
		}
	}
}

// deliver runs detached from the loop context so a shutdown does not abort
// a send already in flight.
func (s *Sender) deliver(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	sent, err := s.sender.Send(ctx, e.To, e.Body)
	if err != nil {
		s.logger.Error("failed to forward message", zap.Error(err), zap.String("to", e.To), zap.String("origin", e.Origin))
		s.bus.Publish(bus.Event{
			Kind:      KindForwardFailed,
			Timestamp: time.Now(),
			Payload:   Result{Entry: e, Error: err.Error()},
		})
		return
	}

	s.logger.Info("message forwarded", zap.String("to", e.To), zap.String("origin", e.Origin), zap.String("sid", sent.SID))
	s.bus.Publish(bus.Event{
		Kind:      KindForwardSent,
		Timestamp: time.Now(),
		Payload:   Result{Entry: e, SID: sent.SID},
	})
}
