package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/matheus3301/smsdash/internal/config"
	"github.com/matheus3301/smsdash/internal/provider"
	"github.com/matheus3301/smsdash/internal/status"
	"github.com/matheus3301/smsdash/internal/store"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; contact imports are the largest legitimate payload.
const maxBodyBytes = 4 << 20

// StatusReporter exposes the daemon state for diagnostics.
type StatusReporter interface {
	Current() status.State
}

// HandlerOptions configure NewHandler.
type HandlerOptions struct {
	Status StatusReporter
	// Verifier enables webhook signature checks when set.
	Verifier *provider.Verifier
	// Ack is config.AckTwiML or config.AckPlain.
	Ack string
	// Live serves GET /events when set.
	Live http.Handler
	// StaticDir is served at / when set.
	StaticDir string
	Logger    *zap.Logger
}

type server struct {
	svc    *Service
	opts   HandlerOptions
	logger *zap.Logger
}

// NewHandler maps the HTTP surface onto svc.
func NewHandler(svc *Service, opts HandlerOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Ack == "" {
		opts.Ack = config.AckTwiML
	}
	s := &server{svc: svc, opts: opts, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /conversations", s.handleConversations)
	mux.HandleFunc("DELETE /conversations/{phoneNumber}", s.handleDeleteConversation)
	mux.HandleFunc("GET /customers", s.handleContacts)
	mux.HandleFunc("POST /customers", s.handleUpsertContact)
	mux.HandleFunc("POST /send-message", s.handleSendMessage)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /webhook", s.handleWebhookInfo)
	mux.HandleFunc("GET /export-customers", s.handleExport)
	mux.HandleFunc("POST /import-customers", s.handleImport)
	mux.HandleFunc("GET /ping", s.handlePing)
	if opts.Live != nil {
		mux.Handle("GET /events", opts.Live)
	}
	if opts.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return chainMiddlewares(mux, withLogging(logger), withCORS)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type upsertContactRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
}

type sendMessageRequest struct {
	To           string `json:"to"`
	Message      string `json:"message"`
	CustomerName string `json:"customerName,omitempty"`
}

type sendMessageResponse struct {
	Success bool          `json:"success"`
	Message store.Message `json:"message"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type importResponse struct {
	Success  bool `json:"success"`
	Imported int  `json:"imported"`
	Total    int  `json:"total"`
}

type pingResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type webhookInfoResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	SyncState string    `json:"syncState"`
	Timestamp time.Time `json:"timestamp"`
}

type webhookPayload struct {
	From       string `json:"From"`
	To         string `json:"To"`
	Body       string `json:"Body"`
	MessageSid string `json:"MessageSid"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *server) handleConversations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Conversations())
}

func (s *server) handleContacts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Contacts())
}

func (s *server) handleUpsertContact(w http.ResponseWriter, r *http.Request) {
	var req upsertContactRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := s.svc.UpsertContact(req.PhoneNumber, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteConversation(r.PathValue("phoneNumber")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	msg, err := s.svc.SendMessage(r.Context(), req.To, req.Message, req.CustomerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{Success: true, Message: msg})
}

// handleWebhook always acknowledges once the request is authentic; the
// provider retries deliveries that are not acknowledged.
func (s *server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseWebhook(r)
	if err != nil {
		s.logger.Warn("unreadable webhook payload", zap.Error(err))
		s.ack(w)
		return
	}
	if s.opts.Verifier != nil && !s.opts.Verifier.Verify(r) {
		s.logger.Warn("webhook signature rejected", zap.String("from", in.From))
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	if _, err := s.svc.ReceiveInbound(in); err != nil {
		s.logger.Warn("webhook ignored", zap.Error(err))
	}
	s.ack(w)
}

func (s *server) parseWebhook(r *http.Request) (Inbound, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var p webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return Inbound{}, err
		}
		return Inbound(p), nil
	}
	if err := r.ParseForm(); err != nil {
		return Inbound{}, err
	}
	return Inbound{
		From:       r.PostForm.Get("From"),
		To:         r.PostForm.Get("To"),
		Body:       r.PostForm.Get("Body"),
		MessageSid: r.PostForm.Get("MessageSid"),
	}, nil
}

func (s *server) ack(w http.ResponseWriter) {
	if s.opts.Ack == config.AckPlain {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "OK")
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, provider.AckTwiML())
}

func (s *server) handleWebhookInfo(w http.ResponseWriter, _ *http.Request) {
	state := "UNKNOWN"
	if s.opts.Status != nil {
		state = string(s.opts.Status.Current())
	}
	writeJSON(w, http.StatusOK, webhookInfoResponse{
		Status:    "ok",
		Message:   "webhook endpoint is reachable",
		SyncState: state,
		Timestamp: time.Now().UTC(),
	})
}

func (s *server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="customers.json"`)
	writeJSON(w, http.StatusOK, s.svc.ExportContacts())
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "unreadable body")
		return
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		badRequest(w, "expected a JSON object of phone number to name")
		return
	}
	var in store.Contacts
	if err := json.Unmarshal(raw, &in); err != nil {
		badRequest(w, "expected a JSON object of phone number to name")
		return
	}
	imported, total := s.svc.ImportContacts(in)
	writeJSON(w, http.StatusOK, importResponse{Success: true, Imported: imported, Total: total})
}

func (s *server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pingResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
