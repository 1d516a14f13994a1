// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/rs/cors"

	"github.com/go-a2a/agentd/a2a"
	"github.com/go-a2a/agentd/approval/webhook"
	"github.com/go-a2a/agentd/auth"
	"github.com/go-a2a/agentd/internal/jsonrpc2"
	"github.com/go-a2a/agentd/internal/metrics"
	"github.com/go-a2a/agentd/internal/pool"
)

// maxRequestBody bounds the size of a JSON-RPC request body.
const maxRequestBody = 4 << 20

// AgentCardPath is where the agent card is served.
const AgentCardPath = "/.well-known/agent.json"

// Server is the HTTP transport of the [Dispatcher].
//
// POST / takes a JSON-RPC request. message/stream is answered as a
// text/event-stream whose frames are JSON-RPC responses echoing the request
// id; every other method is answered with a single JSON response.
type Server struct {
	dispatcher *Dispatcher
	card       *a2a.AgentCard
	verifier   *auth.Verifier
	approvals  webhook.Resolver
	metrics    *metrics.Metrics
	origins    []string
	logger     *slog.Logger

	router chi.Router
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithServerLogger sets the [*slog.Logger] for the [Server].
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAuth requires a bearer token verified by v on protocol requests.
func WithAuth(v *auth.Verifier) ServerOption {
	return func(s *Server) {
		s.verifier = v
	}
}

// WithApprovals mounts POST /approvals/{id} resolving decisions on r.
func WithApprovals(r webhook.Resolver) ServerOption {
	return func(s *Server) {
		s.approvals = r
	}
}

// WithMetricsEndpoint mounts GET /metrics serving mt.
func WithMetricsEndpoint(mt *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = mt
	}
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) {
		s.origins = origins
	}
}

// NewServer creates the HTTP transport.
func NewServer(d *Dispatcher, card *a2a.AgentCard, opts ...ServerOption) *Server {
	s := &Server{
		dispatcher: d,
		card:       card,
		origins:    []string{"*"},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	r.Get(AgentCardPath, s.handleAgentCard)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	if s.approvals != nil {
		r.Method(http.MethodPost, "/approvals/{id}", webhook.Handler(s.approvals, s.logger))
	}

	r.Group(func(r chi.Router) {
		if s.verifier != nil {
			r.Use(auth.Middleware(s.verifier, s.logger))
		}
		r.Post("/", s.handleRPC)
	})

	return r
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusOK, jsonrpc2.NewResponse(nil, nil, jsonrpc2.ErrParse))
		return
	}

	res := s.dispatcher.DispatchBytes(r.Context(), data)
	if res.Stream == nil {
		writeJSON(w, http.StatusOK, res.Response)
		return
	}
	s.stream(w, r, res)
}

// stream writes every event of res as one SSE data frame until the final event.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, res *Result) {
	flusher, _ := w.(http.Flusher)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	broken := false
	for ev := range res.Stream.Events() {
		if broken {
			continue
		}
		if err := writeEvent(w, res.ID, ev); err != nil {
			s.logger.WarnContext(r.Context(), "stream write failed", "error", err)
			broken = true
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, id jsontext.Value, ev a2a.Event) error {
	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)

	buf.WriteString("data: ")
	if err := json.MarshalWrite(buf, jsonrpc2.NewResponse(id, ev, nil)); err != nil {
		return err
	}
	buf.WriteString("\n\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)

	if err := json.MarshalWrite(buf, v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
