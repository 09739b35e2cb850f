// Package api holds the dashboard's request-level operations and their HTTP surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/smsdash/internal/outbox"
	"github.com/matheus3301/smsdash/internal/provider"
	"github.com/matheus3301/smsdash/internal/state"
	"github.com/matheus3301/smsdash/internal/store"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrProvider     = errors.New("provider error")
)

// Sender is the provider's send primitive.
type Sender interface {
	Send(ctx context.Context, to, body string) (provider.Sent, error)
}

// Forwarder queues owner notifications.
type Forwarder interface {
	Enqueue(outbox.Entry) bool
}

// Inbound is a message delivered by the provider's webhook.
type Inbound struct {
	From       string
	To         string
	Body       string
	MessageSid string
}

// Service implements the dashboard operations over the state store.
type Service struct {
	state     *state.Store
	sender    Sender
	forwarder Forwarder
	ourNumber string
	owner     string
	logger    *zap.Logger
	now       func() time.Time
}

// Options configure a Service.
type Options struct {
	// OurNumber is the provider number outbound messages come from.
	OurNumber string
	// OwnerNumber receives a copy of every inbound message when set.
	OwnerNumber string
	Logger      *zap.Logger
}

// NewService creates a new service. forwarder may be nil when no owner number is configured.
func NewService(st *state.Store, sender Sender, forwarder Forwarder, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		state:     st,
		sender:    sender,
		forwarder: forwarder,
		ourNumber: opts.OurNumber,
		owner:     opts.OwnerNumber,
		logger:    logger,
		now:       time.Now,
	}
}

// Conversations returns the full conversation index.
func (s *Service) Conversations() store.Conversations {
	return s.state.Conversations()
}

// Contacts returns the full contact map.
func (s *Service) Contacts() store.Contacts {
	return s.state.Contacts()
}

// UpsertContact sets the display name for phone.
func (s *Service) UpsertContact(phone, name string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: phoneNumber is required", ErrInvalidInput)
	}
	s.state.UpsertContact(phone, name)
	return nil
}

// DeleteConversation removes the conversation with phone.
func (s *Service) DeleteConversation(phone string) error {
	if !s.state.DeleteConversation(phone) {
		return fmt.Errorf("%w: no conversation with %s", ErrNotFound, phone)
	}
	s.logger.Info("conversation deleted", zap.String("phone", phone))
	return nil
}

// SendMessage sends body to to and records the outbound message once the
// provider accepts it. Nothing is recorded when the provider fails.
func (s *Service) SendMessage(ctx context.Context, to, body, name string) (store.Message, error) {
	to = strings.TrimSpace(to)
	if to == "" || body == "" {
		return store.Message{}, fmt.Errorf("%w: to and message are required", ErrInvalidInput)
	}

	sent, err := s.sender.Send(ctx, to, body)
	if err != nil {
		s.logger.Error("send failed", zap.String("to", to), zap.Error(err))
		return store.Message{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	msg := store.Message{
		ID:        sent.SID,
		From:      s.ourNumber,
		To:        to,
		Body:      body,
		Direction: store.Outbound,
		Timestamp: s.now().UTC(),
		Status:    sent.Status,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.state.AppendMessage(msg, strings.TrimSpace(name))
	return msg, nil
}

// ReceiveInbound records a webhook delivery and queues the owner notification.
// A redelivery of a message id already recorded is accepted but changes nothing.
func (s *Service) ReceiveInbound(in Inbound) (store.Message, error) {
	from := strings.TrimSpace(in.From)
	if from == "" {
		return store.Message{}, fmt.Errorf("%w: From is required", ErrInvalidInput)
	}

	msg := store.Message{
		ID:        in.MessageSid,
		From:      from,
		To:        in.To,
		Body:      in.Body,
		Direction: store.Inbound,
		Timestamp: s.now().UTC(),
		Status:    store.StatusReceived,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	if !s.state.AppendMessage(msg, "") {
		return msg, nil
	}
	s.logger.Info("inbound message", zap.String("from", from), zap.String("sid", msg.ID))

	if s.owner != "" && s.forwarder != nil && from != s.owner {
		s.forwarder.Enqueue(outbox.Entry{
			To:     s.owner,
			Body:   ForwardBody(s.state.DisplayName(from), msg.Body),
			Origin: msg.ID,
		})
	}
	return msg, nil
}

// ForwardBody formats the notification sent to the owner.
func ForwardBody(sender, body string) string {
	return fmt.Sprintf("SMS from %s: %s", sender, body)
}

// ImportContacts merges in over the contact map, imported names winning.
func (s *Service) ImportContacts(in store.Contacts) (imported, total int) {
	total = s.state.MergeContacts(in)
	s.logger.Info("contacts imported", zap.Int("imported", len(in)), zap.Int("total", total))
	return len(in), total
}

// ExportContacts returns the contact map for download.
func (s *Service) ExportContacts() store.Contacts {
	return s.state.Contacts()
}
