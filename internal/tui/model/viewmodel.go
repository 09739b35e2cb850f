package model

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matheus3301/smsdash/internal/events"
	"github.com/matheus3301/smsdash/internal/store"
	"github.com/matheus3301/smsdash/internal/tui/client"
)

// Daemon is the subset of client.Client the UI drives.
type Daemon interface {
	Conversations(ctx context.Context) (store.Conversations, error)
	Contacts(ctx context.Context) (store.Contacts, error)
	Info(ctx context.Context) (client.Info, error)
	Send(ctx context.Context, phone, body, name string) (store.Message, error)
	DeleteConversation(ctx context.Context, phone string) error
	UpsertContact(ctx context.Context, phone, name string) error
	Watch(ctx context.Context) (<-chan events.Frame, error)
}

// ReconnectDelay is how long Follow waits before redialing the live channel.
var ReconnectDelay = 2 * time.Second

// ViewModel joins the daemon client with the local mirror.
type ViewModel struct {
	daemon Daemon
	Mirror *Mirror
	Flash  Flash

	mu        sync.RWMutex
	status    string
	connected bool
}

// NewViewModel creates a view model backed by d.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{daemon: d, Mirror: NewMirror(), status: "CONNECTING"}
}

// Load fetches contacts and conversations and replaces the mirror.
func (vm *ViewModel) Load(ctx context.Context) error {
	contacts, err := vm.daemon.Contacts(ctx)
	if err != nil {
		return err
	}
	convs, err := vm.daemon.Conversations(ctx)
	if err != nil {
		return err
	}
	vm.Mirror.Load(contacts, convs)
	return nil
}

// LoadStatus asks the daemon for its sync state.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	info, err := vm.daemon.Info(ctx)
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err != nil {
		vm.status = "UNREACHABLE"
		return err
	}
	vm.status = info.SyncState
	return nil
}

// Status returns the last known daemon state.
func (vm *ViewModel) Status() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Connected reports whether the live channel is currently open.
func (vm *ViewModel) Connected() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.connected
}

func (vm *ViewModel) setConnected(v bool) {
	vm.mu.Lock()
	vm.connected = v
	vm.mu.Unlock()
}

// Send delivers body and records the result locally without waiting for the echo frame.
func (vm *ViewModel) Send(ctx context.Context, phone, body, name string) error {
	if phone == "" {
		return errors.New("no recipient")
	}
	msg, err := vm.daemon.Send(ctx, phone, body, name)
	if err != nil {
		return err
	}
	if name != "" {
		vm.Mirror.SetContact(phone, name)
	}
	vm.Mirror.Append(phone, msg)
	vm.Flash.Set("Message sent", 3*time.Second)
	return nil
}

// Delete removes a conversation on the daemon and locally.
func (vm *ViewModel) Delete(ctx context.Context, phone string) error {
	if err := vm.daemon.DeleteConversation(ctx, phone); err != nil {
		return err
	}
	vm.Mirror.Remove(phone)
	vm.Flash.Set("Conversation deleted", 3*time.Second)
	return nil
}

// Rename stores a contact name.
func (vm *ViewModel) Rename(ctx context.Context, phone, name string) error {
	if err := vm.daemon.UpsertContact(ctx, phone, name); err != nil {
		return err
	}
	vm.Mirror.SetContact(phone, name)
	return nil
}

// Follow applies live frames until ctx is done. The channel has no replay,
// so every (re)connect is followed by a full Load. onChange runs after each
// visible change.
func (vm *ViewModel) Follow(ctx context.Context, onChange func()) {
	for {
		frames, err := vm.daemon.Watch(ctx)
		if err == nil {
			vm.setConnected(true)
			if err := vm.Load(ctx); err != nil {
				vm.Flash.Set("Reload failed: "+err.Error(), 5*time.Second)
			}
			onChange()
			vm.consume(ctx, frames, onChange)
			vm.setConnected(false)
			onChange()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

func (vm *ViewModel) consume(ctx context.Context, frames <-chan events.Frame, onChange func()) {
	for f := range frames {
		changed, reload := vm.Mirror.Apply(f)
		if reload {
			if err := vm.Load(ctx); err != nil {
				vm.Flash.Set("Reload failed: "+err.Error(), 5*time.Second)
			}
			changed = true
		}
		if changed {
			onChange()
		}
	}
}
