// Package web serves read-only bot status over HTTP and an SSE stream.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/dipbot/internal/domain"
	"github.com/vadiminshakov/dipbot/internal/ledger"
)

const (
	snapshotPollInterval = 2 * time.Second
	heartbeatInterval    = 30 * time.Second
	shutdownTimeout      = 5 * time.Second
)

// StatusSource is the read-only view of a running bot.
type StatusSource interface {
	GetCurrentStatus(prices map[string]decimal.Decimal) domain.StatusSnapshot
	LatestStatus() (domain.StatusSnapshotRecord, bool)
	SnapshotsAfter(index uint64) []domain.StatusSnapshotRecord
	AccountSummary() domain.AccountSummary
	CurrencyHistory(symbol string) (ledger.History, bool)
	ClosedTrades() []domain.ClosedTrade
}

// Server exposes status endpoints for dashboards.
type Server struct {
	Addr   string
	source StatusSource
	l      *zap.Logger

	pollInterval time.Duration
}

// NewServer creates a new status server.
func NewServer(l *zap.Logger, addr string, source StatusSource) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Addr: addr, source: source, l: l, pollInterval: snapshotPollInterval}
}

// Handler returns the status routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /status/history", s.handleHistory)
	mux.HandleFunc("GET /status/stream", s.handleStream)
	mux.HandleFunc("GET /accounts", s.handleAccounts)
	mux.HandleFunc("GET /currency", s.handleCurrency)
	mux.HandleFunc("GET /trades", s.handleTrades)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("status server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS serves HTTPS with ACME certificates for host. Port 80 answers
// HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, host, cacheDir string) error {
	if host == "" {
		return fmt.Errorf("no domain provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "certs"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(host),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.l.Warn("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil {
			s.l.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("acme server failed", zap.Error(err))
		}
	}()

	s.l.Info("status server listening with TLS", zap.String("addr", s.Addr), zap.String("domain", host))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns the latest tick snapshot, or a fresh one before the first tick.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if rec, ok := s.source.LatestStatus(); ok {
		s.writeJSON(w, http.StatusOK, rec)
		return
	}
	s.writeJSON(w, http.StatusOK, domain.StatusSnapshotRecord{Snapshot: s.source.GetCurrentStatus(nil)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	after, err := parseAfter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := s.source.SnapshotsAfter(after)
	if records == nil {
		records = []domain.StatusSnapshotRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func parseAfter(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("after")
	if raw == "" {
		return 0, nil
	}
	after, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid 'after' parameter %q", raw)
	}
	return after, nil
}

func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source.AccountSummary())
}

func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "missing 'symbol' parameter")
		return
	}

	history, ok := s.source.CurrencyHistory(symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown currency %s", symbol))
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleTrades(w http.ResponseWriter, _ *http.Request) {
	trades := s.source.ClosedTrades()
	if trades == nil {
		trades = []domain.ClosedTrade{}
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	lastIndex, err := parseAfter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()

	send := func() error {
		for _, record := range s.source.SnapshotsAfter(lastIndex) {
			payload, err := json.Marshal(record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: status\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := send(); err != nil {
		s.l.Warn("status stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-poll.C:
			if err := send(); err != nil {
				s.l.Warn("status stream poll", zap.Error(err))
			}
		}
	}
}
