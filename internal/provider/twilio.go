// Package provider adapts the Twilio messaging API to the daemon's message model.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/smsdash/internal/store"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// DefaultHistoryLimit is how many recent messages a resync asks for.
const DefaultHistoryLimit = 1000

// ErrNotConfigured is returned by Send and Recent when no credentials were supplied.
var ErrNotConfigured = errors.New("provider credentials not configured")

// Sent is the provider's confirmation of an outbound message.
type Sent struct {
	SID    string
	Status string
}

// messagesAPI is the subset of the Twilio REST client the adapter uses.
type messagesAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
	ListMessage(params *openapi.ListMessageParams) ([]openapi.ApiV2010Message, error)
}

// Credentials identify the Twilio account and the number messages are sent from.
type Credentials struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Configured reports whether enough is set to talk to Twilio.
func (c Credentials) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// Twilio sends and lists messages through the Twilio REST API.
type Twilio struct {
	api    messagesAPI
	from   string
	logger *zap.Logger
}

// NewTwilio builds an adapter for creds. With incomplete credentials the
// adapter still constructs, but every call fails with ErrNotConfigured.
func NewTwilio(creds Credentials, logger *zap.Logger) *Twilio {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Twilio{from: creds.FromNumber, logger: logger}
	if creds.Configured() {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: creds.AccountSID,
			Password: creds.AuthToken,
		})
		t.api = client.Api
	} else {
		logger.Warn("twilio credentials incomplete; sends and resync will fail")
	}
	return t
}

func newWithAPI(api messagesAPI, from string) *Twilio {
	return &Twilio{api: api, from: from, logger: zap.NewNop()}
}

// OurNumber is the number outbound messages are sent from.
func (t *Twilio) OurNumber() string { return t.from }

// Send delivers body to the given number.
func (t *Twilio) Send(ctx context.Context, to, body string) (Sent, error) {
	if t.api == nil {
		return Sent{}, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return Sent{}, err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return Sent{}, fmt.Errorf("twilio create message: %w", err)
	}
	sent := Sent{SID: deref(resp.Sid), Status: deref(resp.Status)}
	t.logger.Info("message sent", zap.String("sid", sent.SID), zap.String("to", to), zap.String("status", sent.Status))
	return sent, nil
}

// Recent lists up to limit of the account's most recent messages, newest first
// as Twilio returns them. Direction is left empty; callers classify it.
func (t *Twilio) Recent(ctx context.Context, limit int) ([]store.Message, error) {
	if t.api == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	params := &openapi.ListMessageParams{}
	params.SetLimit(limit)

	records, err := t.api.ListMessage(params)
	if err != nil {
		return nil, fmt.Errorf("twilio list messages: %w", err)
	}

	msgs := make([]store.Message, 0, len(records))
	for i := range records {
		msgs = append(msgs, toMessage(&records[i]))
	}
	return msgs, nil
}

func toMessage(r *openapi.ApiV2010Message) store.Message {
	return store.Message{
		ID:        deref(r.Sid),
		From:      deref(r.From),
		To:        deref(r.To),
		Body:      deref(r.Body),
		Status:    deref(r.Status),
		Timestamp: messageTime(r),
	}
}

// messageTime prefers the sent date and falls back to the created date.
func messageTime(r *openapi.ApiV2010Message) time.Time {
	for _, s := range []*string{r.DateSent, r.DateCreated} {
		if ts, ok := parseDate(deref(s)); ok {
			return ts
		}
	}
	return time.Time{}
}

// Twilio formats dates as RFC 2822.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
