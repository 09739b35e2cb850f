package model

import (
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/smsdash/internal/events"
	"github.com/matheus3301/smsdash/internal/store"
)

// Entry is one row of the contact list.
type Entry struct {
	Phone   string
	Name    string
	Count   int
	Last    time.Time
	Preview string
	Unseen  bool
}

// Mirror is the client's local copy of contacts and conversations, kept
// current by live frames.
type Mirror struct {
	mu       sync.RWMutex
	contacts store.Contacts
	convs    store.Conversations
	unseen   map[string]bool
	active   string
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		contacts: store.Contacts{},
		convs:    store.Conversations{},
		unseen:   map[string]bool{},
	}
}

// Load replaces the local copy. Unseen marks survive for conversations that still exist.
func (m *Mirror) Load(contacts store.Contacts, convs store.Conversations) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = contacts.Clone()
	m.convs = convs.Clone()
	for phone := range m.unseen {
		if _, ok := m.convs[phone]; !ok {
			delete(m.unseen, phone)
		}
	}
}

// Apply folds a live frame into the mirror. reload is true when the frame
// means the whole copy is stale and should be fetched again.
func (m *Mirror) Apply(f events.Frame) (changed, reload bool) {
	switch f.Type {
	case events.TypeNewMessage:
		if f.Message == nil || f.PhoneNumber == "" {
			return false, false
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.appendLocked(f.PhoneNumber, *f.Message) {
			return false, false
		}
		if f.Message.Direction == store.Inbound && f.PhoneNumber != m.active {
			m.unseen[f.PhoneNumber] = true
		}
		return true, false
	case events.TypeConversationDeleted:
		return m.Remove(f.PhoneNumber), false
	case events.TypeSyncCompleted:
		return false, true
	default:
		return false, false
	}
}

// Append adds a message the client sent itself. The echo frame that follows is deduplicated by id.
func (m *Mirror) Append(phone string, msg store.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(phone, msg)
}

func (m *Mirror) appendLocked(phone string, msg store.Message) bool {
	if msg.ID != "" {
		for _, existing := range m.convs[phone] {
			if existing.ID == msg.ID {
				return false
			}
		}
	}
	m.convs[phone] = append(m.convs[phone], msg)
	return true
}

// Remove drops a conversation and its unseen mark.
func (m *Mirror) Remove(phone string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.convs[phone]
	delete(m.convs, phone)
	delete(m.unseen, phone)
	if m.active == phone {
		m.active = ""
	}
	return ok
}

// SetContact records a display name locally.
func (m *Mirror) SetContact(phone, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[phone] = name
}

// Open marks phone as the conversation on screen and clears its unseen mark.
func (m *Mirror) Open(phone string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = phone
	delete(m.unseen, phone)
}

// Close leaves the open conversation.
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = ""
}

// Active returns the open conversation, if any.
func (m *Mirror) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Name returns the contact name for phone, or phone itself.
func (m *Mirror) Name(phone string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n := m.contacts[phone]; n != "" {
		return n
	}
	return phone
}

// Messages returns a copy of one conversation, oldest first.
func (m *Mirror) Messages(phone string) []store.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.Message(nil), m.convs[phone]...)
}

// UnseenCount reports how many conversations have unseen inbound messages.
func (m *Mirror) UnseenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.unseen)
}

// Entries lists every conversation, most recent message first, followed by
// contacts that have no conversation yet.
func (m *Mirror) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, len(m.convs)+len(m.contacts))
	for phone, msgs := range m.convs {
		e := Entry{Phone: phone, Name: m.contacts[phone], Count: len(msgs), Unseen: m.unseen[phone]}
		if n := len(msgs); n > 0 {
			e.Last = msgs[n-1].Timestamp
			e.Preview = msgs[n-1].Body
		}
		out = append(out, e)
	}
	for phone, name := range m.contacts {
		if _, ok := m.convs[phone]; !ok {
			out = append(out, Entry{Phone: phone, Name: name})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Last.Equal(out[j].Last) {
			return out[i].Last.After(out[j].Last)
		}
		return out[i].Phone < out[j].Phone
	})
	return out
}
