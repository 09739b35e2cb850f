package store

import (
	"errors"
	"sort"
	"time"
)

// Direction tells whether a message was received by or sent from our number.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// StatusReceived is the status given to messages that arrive through the webhook.
const StatusReceived = "received"

// Message is a single text message in a conversation.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// Counterparty returns the phone number of the party that is not us.
func (m Message) Counterparty() string {
	if m.Direction == Outbound {
		return m.To
	}
	return m.From
}

// Contacts maps a phone number to a display name.
type Contacts map[string]string

// Clone returns an independent copy.
func (c Contacts) Clone() Contacts {
	out := make(Contacts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Conversations maps a counterparty phone number to its messages, oldest first.
type Conversations map[string][]Message

// Clone returns a deep copy; message slices are not shared with the receiver.
func (c Conversations) Clone() Conversations {
	out := make(Conversations, len(c))
	for k, msgs := range c {
		out[k] = append([]Message(nil), msgs...)
	}
	return out
}

// SortByTimestamp orders every conversation ascending by timestamp.
// Messages with equal timestamps keep their relative order.
func (c Conversations) SortByTimestamp() {
	for _, msgs := range c {
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		})
	}
}

// ErrNoSnapshot is returned by a Mirror that has never saved conversations.
var ErrNoSnapshot = errors.New("no persisted conversation snapshot")

// Mirror is the durable copy of contacts and conversations.
// Saves are full rewrites of the given document.
type Mirror interface {
	LoadContacts() (Contacts, error)
	SaveContacts(Contacts) error
	LoadConversations() (Conversations, error)
	SaveConversations(Conversations) error
	Close() error
}
