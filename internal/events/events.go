// Package events defines the domain events carried on the bus and their wire form.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/smsdash/internal/bus"
	"github.com/matheus3301/smsdash/internal/store"
)

// Bus kinds.
const (
	KindNewMessage          = "conversation.new_message"
	KindConversationDeleted = "conversation.deleted"
	KindSyncCompleted       = "sync.completed"
)

// Namespace of events that change conversations.
const ConversationNamespace = "conversation."

// Frame types as seen by clients.
const (
	TypeNewMessage          = "new-message"
	TypeConversationDeleted = "conversation-deleted"
	TypeSyncCompleted       = "sync-completed"
)

// NewMessage is the payload of KindNewMessage.
type NewMessage struct {
	PhoneNumber string
	Message     store.Message
}

// ConversationDeleted is the payload of KindConversationDeleted.
type ConversationDeleted struct {
	PhoneNumber string
}

// SyncCompleted is the payload of KindSyncCompleted.
type SyncCompleted struct {
	Conversations int
	Messages      int
	FromSnapshot  bool
}

// Frame is one event on the wire.
type Frame struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	OccurredAt    time.Time      `json:"occurredAt"`
	PhoneNumber   string         `json:"phoneNumber,omitempty"`
	Message       *store.Message `json:"message,omitempty"`
	Conversations int            `json:"conversations,omitempty"`
	Messages      int            `json:"messages,omitempty"`
	FromSnapshot  bool           `json:"fromSnapshot,omitempty"`
}

// NewMessageEvent builds the bus event for an appended message.
func NewMessageEvent(phone string, msg store.Message) bus.Event {
	return bus.Event{
		Kind:      KindNewMessage,
		Timestamp: time.Now(),
		Payload:   NewMessage{PhoneNumber: phone, Message: msg},
	}
}

// ConversationDeletedEvent builds the bus event for a removed conversation.
func ConversationDeletedEvent(phone string) bus.Event {
	return bus.Event{
		Kind:      KindConversationDeleted,
		Timestamp: time.Now(),
		Payload:   ConversationDeleted{PhoneNumber: phone},
	}
}

// ToFrame converts a bus event to its wire form. ok is false for kinds or payloads it does not know.
func ToFrame(evt bus.Event) (f Frame, ok bool) {
	f = Frame{ID: uuid.NewString(), OccurredAt: evt.Timestamp}
	switch p := evt.Payload.(type) {
	case NewMessage:
		if evt.Kind != KindNewMessage {
			return Frame{}, false
		}
		msg := p.Message
		f.Type = TypeNewMessage
		f.PhoneNumber = p.PhoneNumber
		f.Message = &msg
	case ConversationDeleted:
		if evt.Kind != KindConversationDeleted {
			return Frame{}, false
		}
		f.Type = TypeConversationDeleted
		f.PhoneNumber = p.PhoneNumber
	case SyncCompleted:
		if evt.Kind != KindSyncCompleted {
			return Frame{}, false
		}
		f.Type = TypeSyncCompleted
		f.Conversations = p.Conversations
		f.Messages = p.Messages
		f.FromSnapshot = p.FromSnapshot
	default:
		return Frame{}, false
	}
	return f, true
}
