// Package state owns the in-memory contacts and conversations.
//
// Every mutation runs mutate, persist and publish inside one critical section,
// so the durable mirror and the live channel observe changes in the order they
// were applied. Persistence failures are logged rather than returned: the
// in-memory copy is authoritative for the life of the process and the mirror is
// rewritten in full on the next mutation.
package state

import (
	"errors"
	"sync"

	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/events"
	"github.com/matheus3301/smsdash/internal/store"
	"go.uber.org/zap"
)

// Store is the single writer for contacts and conversations.
type Store struct {
	mu            sync.Mutex
	contacts      store.Contacts
	conversations store.Conversations

	// journal holds the mutations applied since BeginResync; nil when no
	// resync is in flight.
	journal []journalEntry

	mirror store.Mirror
	bus    *bus.Bus
	logger *zap.Logger
}

// journalEntry is one conversation mutation recorded during a resync. A nil
// msg marks a deletion.
type journalEntry struct {
	phone string
	msg   *store.Message
}

// New creates a store seeded with the mirror's contacts and its last
// conversation snapshot. A missing or unreadable snapshot leaves the index
// empty until the first resync.
func New(mirror store.Mirror, b *bus.Bus, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	contacts, err := mirror.LoadContacts()
	if err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = store.Contacts{}
	}
	convs, err := mirror.LoadConversations()
	if err != nil {
		if !errors.Is(err, store.ErrNoSnapshot) {
			logger.Warn("ignoring unreadable conversation snapshot", zap.Error(err))
		}
		convs = nil
	}
	if convs == nil {
		convs = store.Conversations{}
	}
	return &Store{
		contacts:      contacts,
		conversations: convs,
		mirror:        mirror,
		bus:           b,
		logger:        logger,
	}, nil
}

// Contacts returns a copy of the contact map.
func (s *Store) Contacts() store.Contacts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts.Clone()
}

// Conversations returns a deep copy of the conversation index.
func (s *Store) Conversations() store.Conversations {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations.Clone()
}

// DisplayName returns the contact name for phone, or phone itself when unnamed.
func (s *Store) DisplayName(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name := s.contacts[phone]; name != "" {
		return name
	}
	return phone
}

// UpsertContact sets the name for phone.
func (s *Store) UpsertContact(phone, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[phone] = name
	s.saveContactsLocked()
}

// MergeContacts copies every entry of in over the existing map and returns the resulting total.
func (s *Store) MergeContacts(in store.Contacts) (total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for phone, name := range in {
		s.contacts[phone] = name
	}
	s.saveContactsLocked()
	return len(s.contacts)
}

// AppendMessage adds msg to the conversation of its counterparty, creating it if absent.
// When contactName is non-empty the counterparty's contact entry is set first.
// A message whose id already exists in that conversation is ignored and
// appended reports false; nothing is persisted or published in that case.
func (s *Store) AppendMessage(msg store.Message, contactName string) (appended bool) {
	phone := msg.Counterparty()

	s.mu.Lock()
	defer s.mu.Unlock()

	if contactName != "" && s.contacts[phone] != contactName {
		s.contacts[phone] = contactName
		s.saveContactsLocked()
	}

	if msg.ID != "" && containsID(s.conversations[phone], msg.ID) {
		s.logger.Info("duplicate message ignored", zap.String("msg_id", msg.ID), zap.String("phone", phone))
		return false
	}

	s.conversations[phone] = append(s.conversations[phone], msg)
	s.recordLocked(phone, &msg)
	s.saveConversationsLocked()
	s.bus.Publish(events.NewMessageEvent(phone, msg))
	return true
}

// DeleteConversation removes the conversation for phone. It reports false,
// and changes nothing, when there was none.
func (s *Store) DeleteConversation(phone string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[phone]; !ok {
		return false
	}
	delete(s.conversations, phone)
	s.recordLocked(phone, nil)
	s.saveConversationsLocked()
	s.bus.Publish(events.ConversationDeletedEvent(phone))
	return true
}

// BeginResync starts recording appends and deletions so that the next
// ReplaceConversations or RestoreConversations can re-apply them on top of an
// index fetched while they happened. Calling it again restarts the record.
func (s *Store) BeginResync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = []journalEntry{}
}

// ReplaceConversations swaps the whole index for convs and persists it.
// Mutations recorded since BeginResync are re-applied first.
// The store takes ownership of convs.
func (s *Store) ReplaceConversations(convs store.Conversations) {
	if convs == nil {
		convs = store.Conversations{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replayLocked(convs)
	s.conversations = convs
	s.saveConversationsLocked()
}

// RestoreConversations swaps the whole index for convs without writing the
// mirror. Used when convs was just read from it. Recorded mutations are
// re-applied as in ReplaceConversations; the mirror is only written when that
// changed something.
func (s *Store) RestoreConversations(convs store.Conversations) {
	if convs == nil {
		convs = store.Conversations{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.replayLocked(convs)
	s.conversations = convs
	if changed {
		s.saveConversationsLocked()
	}
}

func (s *Store) recordLocked(phone string, msg *store.Message) {
	if s.journal == nil {
		return
	}
	s.journal = append(s.journal, journalEntry{phone: phone, msg: msg})
}

// replayLocked applies the journal to convs in order and stops recording.
// Appends whose id is already present are skipped.
func (s *Store) replayLocked(convs store.Conversations) (changed bool) {
	journal := s.journal
	s.journal = nil
	for _, e := range journal {
		if e.msg == nil {
			if _, ok := convs[e.phone]; ok {
				delete(convs, e.phone)
				changed = true
			}
			continue
		}
		if e.msg.ID != "" && containsID(convs[e.phone], e.msg.ID) {
			continue
		}
		convs[e.phone] = append(convs[e.phone], *e.msg)
		changed = true
	}
	if len(journal) > 0 {
		s.logger.Info("re-applied mutations made during resync", zap.Int("count", len(journal)))
	}
	return changed
}

func containsID(msgs []store.Message, id string) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) saveContactsLocked() {
	if err := s.mirror.SaveContacts(s.contacts); err != nil {
		s.logger.Error("failed to persist contacts", zap.Error(err))
	}
}

func (s *Store) saveConversationsLocked() {
	if err := s.mirror.SaveConversations(s.conversations); err != nil {
		s.logger.Error("failed to persist conversations", zap.Error(err))
	}
}
