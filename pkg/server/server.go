package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/formstore-dev/formstore/pkg/form"
)

// Config holds the server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// ReadTimeout bounds how long a session may go without a client
	// message before the connection is dropped.
	ReadTimeout time.Duration

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// MaxMessageBytes caps inbound message size.
	MaxMessageBytes int64

	// Logger receives server logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Registry receives the Prometheus instruments. Defaults to the
	// global default registerer.
	Registry prometheus.Registerer
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 1 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Registry == nil {
		c.Registry = prometheus.DefaultRegisterer
	}
	return c
}

// Server hosts form sessions over WebSocket.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	schemas map[string]form.Validator

	upgrader websocket.Upgrader
	router   chi.Router

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a Server. schemas maps names accepted by the "schema" op to
// validators; nil means no named schemas.
func New(cfg Config, schemas map[string]form.Validator) *Server {
	cfg = cfg.withDefaults()
	if schemas == nil {
		schemas = make(map[string]form.Validator)
	}

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.Registry),
		tracer:  otel.Tracer("formstore"),
		schemas: schemas,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		sessions: make(map[string]*Session),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metricsHandler())
	r.Get("/ws", s.handleWS)
	s.router = r

	return s
}

// Handler returns the HTTP surface of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) metricsHandler() http.Handler {
	if g, ok := s.cfg.Registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageBytes)

	sess := newSession(s, conn)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.metrics.SessionsTotal.Inc()
	s.metrics.ActiveSessions.Inc()
	sess.logger.Info("session opened", "remote", r.RemoteAddr)

	go sess.ReadLoop()
}

func (s *Server) removeSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.Close()
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.closeSessions()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
