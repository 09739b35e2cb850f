package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/matheus3301/smsdash/internal/api"
	"github.com/matheus3301/smsdash/internal/live"
	"github.com/matheus3301/smsdash/internal/provider"
	"github.com/matheus3301/smsdash/internal/status"
	"go.uber.org/zap"
)

// Server manages the HTTP server lifecycle for the daemon.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewServer creates an HTTP server bound to the configured listen address.
func NewServer(p Params, svc *api.Service, hub *live.Hub, machine *status.Machine, logger *zap.Logger) (*Server, error) {
	cfg := p.Config

	opts := api.HandlerOptions{
		Status:    machine,
		Ack:       cfg.Webhook.Ack,
		StaticDir: cfg.HTTP.StaticDir,
		Logger:    logger,
	}
	if hub != nil {
		opts.Live = hub
	}
	if cfg.Webhook.ValidateSignature {
		opts.Verifier = provider.NewVerifier(cfg.Twilio.AuthToken, cfg.Webhook.PublicURL)
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.HTTP.Listen, err)
	}

	srv := &http.Server{
		Handler:           api.NewHandler(svc, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSeconds) * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}

	return &Server{
		httpServer: srv,
		listener:   listener,
		logger:     logger,
	}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start begins serving HTTP requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.listener.Addr().String()))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop performs a graceful shutdown bounded by ctx.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown incomplete", zap.Error(err))
	}
}
