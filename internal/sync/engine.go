// Package sync rebuilds the conversation index from the provider's message history.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/events"
	"github.com/matheus3301/smsdash/internal/state"
	"github.com/matheus3301/smsdash/internal/status"
	"github.com/matheus3301/smsdash/internal/store"
	"go.uber.org/zap"
)

// History is the provider's message listing.
type History interface {
	Recent(ctx context.Context, limit int) ([]store.Message, error)
	OurNumber() string
}

// Classify reports whether msg was sent from or received by ourNumber.
func Classify(msg store.Message, ourNumber string) store.Direction {
	if msg.From == ourNumber {
		return store.Outbound
	}
	return store.Inbound
}

// Counterparty returns the party of msg that is not us, given its direction.
func Counterparty(msg store.Message, dir store.Direction) string {
	if dir == store.Outbound {
		return msg.To
	}
	return msg.From
}

// Group classifies msgs against ourNumber and buckets them per counterparty,
// each bucket sorted oldest first. msgs is expected newest first, as the
// provider lists them; a repeated id is kept once.
func Group(msgs []store.Message, ourNumber string) store.Conversations {
	convs := store.Conversations{}
	seen := make(map[string]struct{}, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.ID != "" {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
		}
		msg.Direction = Classify(msg, ourNumber)
		phone := Counterparty(msg, msg.Direction)
		convs[phone] = append(convs[phone], msg)
	}
	convs.SortByTimestamp()
	return convs
}

// Result summarizes one resync.
type Result struct {
	Conversations int
	Messages      int
	FromSnapshot  bool
	Duration      time.Duration
}

// Engine runs the startup resync.
type Engine struct {
	history History
	state   *state.Store
	mirror  store.Mirror
	bus     *bus.Bus
	machine *status.Machine
	limit   int
	logger  *zap.Logger
}

// NewEngine creates a new sync engine. limit caps how many messages are fetched.
func NewEngine(h History, st *state.Store, mirror store.Mirror, b *bus.Bus, machine *status.Machine, limit int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		history: h,
		state:   st,
		mirror:  mirror,
		bus:     b,
		machine: machine,
		limit:   limit,
		logger:  logger,
	}
}

// Resync replaces the conversation index with the provider's history.
//
// When the provider cannot be queried the in-memory index is restored from the
// mirror's last snapshot, or emptied when there is none, and the daemon is
// marked degraded. The provider error is returned alongside a usable Result;
// the caller is expected to log it and carry on.
//
// Messages appended and conversations deleted while the history is being
// fetched are re-applied to whichever index is installed.
func (e *Engine) Resync(ctx context.Context) (Result, error) {
	start := time.Now()
	e.transition(status.Syncing)
	e.state.BeginResync()

	msgs, err := e.history.Recent(ctx, e.limit)
	if err != nil {
		res, restoreErr := e.restore()
		res.Duration = time.Since(start)
		e.transition(status.Degraded)
		e.publish(res)
		e.logger.Warn("provider history unavailable; using persisted snapshot",
			zap.Error(err),
			zap.Int("conversations", res.Conversations),
			zap.Int("messages", res.Messages),
		)
		if restoreErr != nil {
			return res, fmt.Errorf("resync: %w (restore: %v)", err, restoreErr)
		}
		return res, fmt.Errorf("resync: %w", err)
	}

	convs := Group(msgs, e.history.OurNumber())
	res := Result{Conversations: len(convs), Messages: countMessages(convs)}
	e.state.ReplaceConversations(convs)
	res.Duration = time.Since(start)

	e.transition(status.Ready)
	e.publish(res)
	e.logger.Info("resync complete",
		zap.Int("conversations", res.Conversations),
		zap.Int("messages", res.Messages),
		zap.Duration("took", res.Duration),
	)
	return res, nil
}

func (e *Engine) restore() (Result, error) {
	res := Result{FromSnapshot: true}
	convs, err := e.mirror.LoadConversations()
	switch {
	case errors.Is(err, store.ErrNoSnapshot):
		convs = store.Conversations{}
		err = nil
	case err != nil:
		e.logger.Error("failed to load conversation snapshot", zap.Error(err))
		convs = store.Conversations{}
	}
	e.state.RestoreConversations(convs)
	res.Conversations = len(convs)
	res.Messages = countMessages(convs)
	return res, err
}

func (e *Engine) transition(to status.State) {
	if e.machine == nil {
		return
	}
	if err := e.machine.Transition(to); err != nil {
		e.logger.Warn("status transition rejected", zap.Error(err))
	}
}

func (e *Engine) publish(res Result) {
	e.bus.Publish(bus.Event{
		Kind:      events.KindSyncCompleted,
		Timestamp: time.Now(),
		Payload: events.SyncCompleted{
			Conversations: res.Conversations,
			Messages:      res.Messages,
			FromSnapshot:  res.FromSnapshot,
		},
	})
}

func countMessages(c store.Conversations) int {
	n := 0
	for _, msgs := range c {
		n += len(msgs)
	}
	return n
}
