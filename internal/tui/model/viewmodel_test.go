package model

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/smsdash/internal/events"
	"github.com/matheus3301/smsdash/internal/store"
	"github.com/matheus3301/smsdash/internal/tui/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDaemon struct {
	mu       sync.Mutex
	contacts store.Contacts
	convs    store.Conversations
	sendErr  error
	deleted  []string
	frames   chan events.Frame
	loads    atomic.Int32
}

func (f *fakeDaemon) Conversations(context.Context) (store.Conversations, error) {
	f.loads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convs.Clone(), nil
}

func (f *fakeDaemon) Contacts(context.Context) (store.Contacts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts.Clone(), nil
}

func (f *fakeDaemon) Info(context.Context) (client.Info, error) {
	return client.Info{SyncState: "READY"}, nil
}

func (f *fakeDaemon) Send(_ context.Context, phone, body, _ string) (store.Message, error) {
	if f.sendErr != nil {
		return store.Message{}, f.sendErr
	}
	return store.Message{ID: "SM1", To: phone, Body: body, Direction: store.Outbound, Timestamp: time.Unix(10, 0)}, nil
}

func (f *fakeDaemon) DeleteConversation(_ context.Context, phone string) error {
	f.deleted = append(f.deleted, phone)
	return nil
}

func (f *fakeDaemon) UpsertContact(_ context.Context, phone, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts[phone] = name
	return nil
}

func (f *fakeDaemon) Watch(context.Context) (<-chan events.Frame, error) {
	if f.frames == nil {
		return nil, errors.New("offline")
	}
	return f.frames, nil
}

func newFake() *fakeDaemon {
	return &fakeDaemon{contacts: store.Contacts{}, convs: store.Conversations{}}
}

func TestSendAppendsLocally(t *testing.T) {
	vm := NewViewModel(newFake())
	require.NoError(t, vm.Send(context.Background(), "+1a", "hello", "Alice"))

	msgs := vm.Mirror.Messages("+1a")
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Body)
	assert.Equal(t, "Alice", vm.Mirror.Name("+1a"))
	assert.Equal(t, "Message sent", vm.Flash.Get())

	changed, _ := vm.Mirror.Apply(newMessageFrame("+1a", msgs[0]))
	assert.False(t, changed, "echo frame is deduplicated")
}

func TestSendFailureLeavesMirror(t *testing.T) {
	d := newFake()
	d.sendErr = errors.New("provider down")
	vm := NewViewModel(d)
	assert.Error(t, vm.Send(context.Background(), "+1a", "hello", ""))
	assert.Empty(t, vm.Mirror.Entries())
	assert.Error(t, vm.Send(context.Background(), "", "hello", ""))
}

func TestDeleteAndRename(t *testing.T) {
	d := newFake()
	d.convs["+1a"] = []store.Message{inbound("1", "+1a", "hi", 1)}
	vm := NewViewModel(d)
	ctx := context.Background()
	require.NoError(t, vm.Load(ctx))

	require.NoError(t, vm.Rename(ctx, "+1a", "Alice"))
	assert.Equal(t, "Alice", vm.Mirror.Name("+1a"))

	require.NoError(t, vm.Delete(ctx, "+1a"))
	assert.Equal(t, []string{"+1a"}, d.deleted)
	assert.Len(t, vm.Mirror.Entries(), 1, "the contact remains")
	assert.Zero(t, vm.Mirror.Entries()[0].Count)
}

func TestLoadStatus(t *testing.T) {
	vm := NewViewModel(newFake())
	assert.Equal(t, "CONNECTING", vm.Status())
	require.NoError(t, vm.LoadStatus(context.Background()))
	assert.Equal(t, "READY", vm.Status())
}

func TestFollowAppliesFramesAndReloads(t *testing.T) {
	d := newFake()
	d.frames = make(chan events.Frame)
	vm := NewViewModel(d)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	done := make(chan struct{})
	go func() {
		vm.Follow(ctx, func() { changes.Add(1) })
		close(done)
	}()

	d.frames <- newMessageFrame("+1a", inbound("1", "+1a", "hi", 1))
	require.Eventually(t, func() bool { return len(vm.Mirror.Messages("+1a")) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, vm.Connected())
	assert.Equal(t, int32(1), d.loads.Load(), "connect triggers one full load")

	d.frames <- events.Frame{Type: events.TypeSyncCompleted}
	require.Eventually(t, func() bool { return d.loads.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, vm.Mirror.Messages("+1a"), "reload replaces the local copy with the daemon's")

	cancel()
	close(d.frames)
	<-done
	assert.False(t, vm.Connected())
	assert.GreaterOrEqual(t, changes.Load(), int32(3))
}
