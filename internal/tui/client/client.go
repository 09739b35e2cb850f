// Package client talks to a running smsdashd over HTTP and its live channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/smsdash/internal/events"
	"github.com/matheus3301/smsdash/internal/store"
)

// DefaultAddr is where the daemon listens unless configured otherwise.
const DefaultAddr = "http://127.0.0.1:3000"

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Info is the daemon's self report from GET /webhook.
type Info struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	SyncState string    `json:"syncState"`
	Timestamp time.Time `json:"timestamp"`
}

// Client wraps HTTP access to the daemon.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the daemon at addr. A bare host:port gets an http scheme.
func New(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) (time.Time, error) {
	var resp struct {
		Timestamp time.Time `json:"timestamp"`
	}
	err := c.do(ctx, http.MethodGet, "/ping", nil, &resp)
	return resp.Timestamp, err
}

// Info reports the daemon's sync state.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.do(ctx, http.MethodGet, "/webhook", nil, &info)
	return info, err
}

// Conversations fetches every conversation.
func (c *Client) Conversations(ctx context.Context) (store.Conversations, error) {
	convs := store.Conversations{}
	err := c.do(ctx, http.MethodGet, "/conversations", nil, &convs)
	return convs, err
}

// Contacts fetches the contact directory.
func (c *Client) Contacts(ctx context.Context) (store.Contacts, error) {
	contacts := store.Contacts{}
	err := c.do(ctx, http.MethodGet, "/customers", nil, &contacts)
	return contacts, err
}

// UpsertContact names a phone number.
func (c *Client) UpsertContact(ctx context.Context, phone, name string) error {
	req := map[string]string{"phoneNumber": phone, "name": name}
	return c.do(ctx, http.MethodPost, "/customers", req, nil)
}

// DeleteConversation removes a whole thread.
func (c *Client) DeleteConversation(ctx context.Context, phone string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(phone), nil, nil)
}

// Send delivers body to phone. A non-empty name also records the contact.
func (c *Client) Send(ctx context.Context, phone, body, name string) (store.Message, error) {
	req := map[string]string{"to": phone, "message": body}
	if name != "" {
		req["customerName"] = name
	}
	var resp struct {
		Message store.Message `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/send-message", req, &resp)
	return resp.Message, err
}

// ExportContacts downloads the contact directory.
func (c *Client) ExportContacts(ctx context.Context) (store.Contacts, error) {
	contacts := store.Contacts{}
	err := c.do(ctx, http.MethodGet, "/export-customers", nil, &contacts)
	return contacts, err
}

// ImportContacts merges in into the daemon's directory.
func (c *Client) ImportContacts(ctx context.Context, in store.Contacts) (imported, total int, err error) {
	var resp struct {
		Imported int `json:"imported"`
		Total    int `json:"total"`
	}
	err = c.do(ctx, http.MethodPost, "/import-customers", in, &resp)
	return resp.Imported, resp.Total, err
}

// Watch streams live frames until ctx is done or the connection drops;
// the channel is closed in both cases.
func (c *Client) Watch(ctx context.Context) (<-chan events.Frame, error) {
	u, err := url.Parse(c.base + "/events")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial live channel: %w", err)
	}

	out := make(chan events.Frame, 16)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var f events.Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
