package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rack-io/rack/internal/agent"
	"github.com/rack-io/rack/internal/audit"
	"github.com/rack-io/rack/internal/ticket"
	"github.com/rack-io/rack/pkg/protocol"
)

// Service is the interface the API server needs from the support session.
type Service interface {
	Snapshot(ctx context.Context) (protocol.Snapshot, error)
	Submit(ctx context.Context, text string) (protocol.Message, error)
	Guardrails() []protocol.Guardrail
	Evaluate(message, intent string) protocol.Verdict
	ResolveHITL(ctx context.Context, note string) bool
	Subscribe() (<-chan protocol.Snapshot, func())
}

// AuditQuerier abstracts audit trail queries.
type AuditQuerier interface {
	Query(q audit.Query) []audit.Entry
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	Key  string // API key for Bearer auth
}

// Server is the rack REST API server.
type Server struct {
	svc     Service
	tickets ticket.Store
	audit   AuditQuerier
	cfg     Config
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer creates a new API server. trail may be nil.
func NewServer(svc Service, tickets ticket.Store, cfg Config, logger *slog.Logger, trail AuditQuerier) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:     svc,
		tickets: tickets,
		audit:   trail,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/session", s.handleSession)
		r.Post("/api/messages", s.handlePostMessage)
		r.Get("/api/tickets", s.handleListTickets)
		r.Get("/api/tickets/{id}", s.handleGetTicket)
		r.Get("/api/guardrails", s.handleGuardrails)
		r.Post("/api/evaluate", s.handleEvaluate)
		r.Get("/api/audit", s.handleAudit)
		r.Post("/api/hitl/resolve", s.handleResolveHITL)
		r.Get("/api/stream", s.handleStream)
	})

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth checks the Bearer token. Browsers cannot set headers on a
// WebSocket handshake, so ?token= is accepted as well.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.URL.Query().Get("token")
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
		if token != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type postMessageRequest struct {
	Content string `json:"content"`
}

type postMessageResponse struct {
	Message  protocol.Message  `json:"message"`
	Snapshot protocol.Snapshot `json:"snapshot"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	msg, err := s.svc.Submit(r.Context(), req.Content)
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	case errors.Is(err, agent.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a message is already being processed"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, postMessageResponse{Message: msg, Snapshot: snap})
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ticket.Filter{Query: q.Get("q")}
	if status := q.Get("status"); status != "" {
		ts := protocol.TicketStatus(status)
		if !ts.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid status %q", status)})
			return
		}
		filter.Status = &ts
	}
	if priority := q.Get("priority"); priority != "" {
		tp := protocol.TicketPriority(priority)
		if !tp.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid priority %q", priority)})
			return
		}
		filter.Priority = &tp
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = n
		}
	}

	tickets, err := s.tickets.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.tickets.Get(r.Context(), id)
	if errors.Is(err, ticket.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleGuardrails(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Guardrails())
}

type evaluateRequest struct {
	Message string `json:"message"`
	Intent  string `json:"intent,omitempty"`
}

type evaluateResponse struct {
	Verdict protocol.Verdict `json:"verdict"`
	Badge   string           `json:"badge"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	v := s.svc.Evaluate(req.Message, req.Intent)
	writeJSON(w, http.StatusOK, evaluateResponse{Verdict: v, Badge: v.Badge()})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, []audit.Entry{})
		return
	}

	q := audit.Query{
		Status: protocol.VerdictStatus(r.URL.Query().Get("status")),
		Action: r.URL.Query().Get("action"),
		Limit:  200,
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if ms, err := strconv.ParseInt(since, 10, 64); err == nil {
			q.Since = time.UnixMilli(ms)
		}
	}
	writeJSON(w, http.StatusOK, s.audit.Query(q))
}

type resolveRequest struct {
	Note string `json:"note,omitempty"`
}

func (s *Server) handleResolveHITL(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}
	if !s.svc.ResolveHITL(r.Context(), req.Note) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no escalation pending"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"resolved": true})
}

// handleStream sends the current snapshot, then a new one after every change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closed")

	ctx := conn.CloseRead(r.Context())
	updates, cancel := s.svc.Subscribe()
	defer cancel()

	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "snapshot failed")
		return
	}
	if err := s.writeSnapshot(ctx, conn, snap); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeSnapshot(ctx, conn, snap); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) writeSnapshot(ctx context.Context, conn *websocket.Conn, snap protocol.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, snap)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
