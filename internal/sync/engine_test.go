package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/events"
	"github.com/matheus3301/smsdash/internal/state"
	"github.com/matheus3301/smsdash/internal/status"
	"github.com/matheus3301/smsdash/internal/store"
	"go.uber.org/zap"
)

const us = "+15550000000"

type fakeHistory struct {
	msgs  []store.Message
	err   error
	limit int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]store.Message, error) {
	f.limit = limit
	return f.msgs, f.err
}

func (f *fakeHistory) OurNumber() string { return us }

type fixture struct {
	engine  *Engine
	state   *state.Store
	mirror  *store.JSONMirror
	bus     *bus.Bus
	machine *status.Machine
}

func newFixture(t *testing.T, h History) *fixture {
	t.Helper()
	dir := t.TempDir()
	mirror := store.NewJSONMirror(filepath.Join(dir, "customers.json"), filepath.Join(dir, "conversations.json"))
	b := bus.New()
	st, err := state.New(mirror, b, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	m := status.NewMachine(b)
	return &fixture{
		engine:  NewEngine(h, st, mirror, b, m, 500, zap.NewNop()),
		state:   st,
		mirror:  mirror,
		bus:     b,
		machine: m,
	}
}

func at(sec int64) time.Time { return time.Unix(1_700_000_000+sec, 0).UTC() }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  store.Message
		want store.Direction
	}{
		{"from us", store.Message{From: us, To: "+1a"}, store.Outbound},
		{"to us", store.Message{From: "+1a", To: us}, store.Inbound},
		{"neither", store.Message{From: "+1a", To: "+1b"}, store.Inbound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.msg, us); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGroup(t *testing.T) {
	// Newest first, as listed by the provider.
	msgs := []store.Message{
		{ID: "m4", From: us, To: "+1a", Timestamp: at(40)},
		{ID: "m3", From: "+1b", To: us, Timestamp: at(30)},
		{ID: "m2", From: "+1a", To: us, Timestamp: at(20)},
		{ID: "m1", From: us, To: "+1a", Timestamp: at(10)},
		{ID: "m2", From: "+1a", To: us, Timestamp: at(20)},
	}
	convs := Group(msgs, us)

	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	a := convs["+1a"]
	if len(a) != 3 {
		t.Fatalf("+1a has %d messages, want 3 (duplicate dropped)", len(a))
	}
	for i, id := range []string{"m1", "m2", "m4"} {
		if a[i].ID != id {
			t.Errorf("+1a[%d] = %s, want %s", i, a[i].ID, id)
		}
	}
	if a[0].Direction != store.Outbound || a[1].Direction != store.Inbound {
		t.Errorf("directions = %s, %s", a[0].Direction, a[1].Direction)
	}
	if convs["+1b"][0].Direction != store.Inbound {
		t.Error("+1b message should be inbound")
	}
}

// Equal timestamps end up oldest first once the provider's newest-first order is undone.
func TestGroupTiesKeepProviderOrder(t *testing.T) {
	msgs := []store.Message{
		{ID: "second", From: "+1a", To: us, Timestamp: at(0)},
		{ID: "first", From: "+1a", To: us, Timestamp: at(0)},
	}
	got := Group(msgs, us)["+1a"]
	if got[0].ID != "first" || got[1].ID != "second" {
		t.Errorf("order = %s, %s; want first, second", got[0].ID, got[1].ID)
	}
}

func TestResyncReplacesIndex(t *testing.T) {
	h := &fakeHistory{msgs: []store.Message{
		{ID: "m2", From: "+1a", To: us, Body: "hi", Timestamp: at(20)},
		{ID: "m1", From: us, To: "+1a", Body: "hello", Timestamp: at(10)},
	}}
	f := newFixture(t, h)
	f.state.ReplaceConversations(store.Conversations{"+1stale": {{ID: "old"}}})

	ch, unsub := f.bus.Subscribe("sync.", 10)
	defer unsub()

	res, err := f.engine.Resync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.FromSnapshot || res.Conversations != 1 || res.Messages != 2 {
		t.Errorf("result = %+v", res)
	}
	if h.limit != 500 {
		t.Errorf("limit = %d, want 500", h.limit)
	}

	convs := f.state.Conversations()
	if _, ok := convs["+1stale"]; ok {
		t.Error("stale conversation survived resync")
	}
	if len(convs["+1a"]) != 2 || convs["+1a"][0].ID != "m1" {
		t.Errorf("+1a = %+v", convs["+1a"])
	}

	persisted, err := f.mirror.LoadConversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted["+1a"]) != 2 {
		t.Error("resynced index not persisted")
	}
	if f.machine.Current() != status.Ready {
		t.Errorf("status = %s, want READY", f.machine.Current())
	}

	select {
	case evt := <-ch:
		p := evt.Payload.(events.SyncCompleted)
		if evt.Kind != events.KindSyncCompleted || p.Messages != 2 || p.FromSnapshot {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sync.completed")
	}
}

func TestResyncFallsBackToSnapshot(t *testing.T) {
	f := newFixture(t, &fakeHistory{err: errors.New("network down")})
	snapshot := store.Conversations{"+1a": {{ID: "m1", From: "+1a", To: us, Direction: store.Inbound, Timestamp: at(1)}}}
	if err := f.mirror.SaveConversations(snapshot); err != nil {
		t.Fatal(err)
	}

	res, err := f.engine.Resync(context.Background())
	if err == nil {
		t.Fatal("expected provider error to be reported")
	}
	if !res.FromSnapshot || res.Conversations != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := f.state.Conversations(); len(got["+1a"]) != 1 {
		t.Errorf("index = %v, want snapshot", got)
	}
	if f.machine.Current() != status.Degraded {
		t.Errorf("status = %s, want DEGRADED", f.machine.Current())
	}
}

func TestResyncWithoutSnapshotStartsEmpty(t *testing.T) {
	f := newFixture(t, &fakeHistory{err: errors.New("401")})

	res, err := f.engine.Resync(context.Background())
	if err == nil {
		t.Fatal("expected provider error to be reported")
	}
	if !res.FromSnapshot || res.Conversations != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(f.state.Conversations()) != 0 {
		t.Error("index should be empty")
	}
	// Falling back must not create a snapshot out of nothing.
	if _, err := f.mirror.LoadConversations(); !errors.Is(err, store.ErrNoSnapshot) {
		t.Errorf("mirror err = %v, want ErrNoSnapshot", err)
	}
}

// gatedHistory blocks Recent until release is closed, so a test can mutate the
// store while the fetch is in flight.
type gatedHistory struct {
	msgs    []store.Message
	err     error
	started chan struct{}
	release chan struct{}
}

func newGatedHistory(msgs []store.Message, err error) *gatedHistory {
	return &gatedHistory{msgs: msgs, err: err, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedHistory) Recent(ctx context.Context, _ int) ([]store.Message, error) {
	close(g.started)
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.msgs, g.err
}

func (g *gatedHistory) OurNumber() string { return us }

func runGated(t *testing.T, f *fixture, g *gatedHistory, during func()) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Resync(context.Background())
		done <- err
	}()
	select {
	case <-g.started:
	case <-time.After(time.Second):
		t.Fatal("resync never queried the provider")
	}
	during()
	close(g.release)
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("resync did not finish")
	}
	return nil
}

func TestResyncKeepsMessagesAppendedDuringFetch(t *testing.T) {
	g := newGatedHistory([]store.Message{
		{ID: "old", From: "+1a", To: us, Timestamp: at(1)},
		{ID: "gone", From: "+1b", To: us, Timestamp: at(2)},
	}, nil)
	f := newFixture(t, g)

	err := runGated(t, f, g, func() {
		f.state.AppendMessage(store.Message{ID: "live", From: "+1a", To: us, Direction: store.Inbound, Timestamp: at(5)}, "")
		f.state.AppendMessage(store.Message{ID: "gone", From: "+1b", To: us, Direction: store.Inbound, Timestamp: at(2)}, "")
		f.state.DeleteConversation("+1b")
	})
	if err != nil {
		t.Fatal(err)
	}

	got := f.state.Conversations()
	a := got["+1a"]
	if len(a) != 2 || a[0].ID != "old" || a[1].ID != "live" {
		t.Errorf("+1a = %v, want old then live", a)
	}
	if _, ok := got["+1b"]; ok {
		t.Error("conversation deleted during the fetch came back")
	}

	persisted, err := f.mirror.LoadConversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted["+1a"]) != 2 {
		t.Errorf("mirror has %d messages for +1a, want 2", len(persisted["+1a"]))
	}
	if _, ok := persisted["+1b"]; ok {
		t.Error("mirror still holds the deleted conversation")
	}
}

func TestFallbackKeepsSnapshotAndMessagesAppendedDuringFetch(t *testing.T) {
	dir := t.TempDir()
	mirror := store.NewJSONMirror(filepath.Join(dir, "customers.json"), filepath.Join(dir, "conversations.json"))
	snapshot := store.Conversations{"+1a": {{ID: "m1", From: "+1a", To: us, Direction: store.Inbound, Timestamp: at(1)}}}
	if err := mirror.SaveConversations(snapshot); err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	st, err := state.New(mirror, b, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	g := newGatedHistory(nil, errors.New("network down"))
	f := &fixture{engine: NewEngine(g, st, mirror, b, nil, 500, zap.NewNop()), state: st, mirror: mirror, bus: b}

	_ = runGated(t, f, g, func() {
		st.AppendMessage(store.Message{ID: "live", From: "+1a", To: us, Direction: store.Inbound, Timestamp: at(5)}, "")
	})

	a := st.Conversations()["+1a"]
	if len(a) != 2 || a[0].ID != "m1" || a[1].ID != "live" {
		t.Errorf("+1a = %v, want snapshot message then live", a)
	}
}
