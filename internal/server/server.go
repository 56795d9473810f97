// Package server exposes vanity search over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Amr-9/btcvanity/internal/metrics"
	"github.com/Amr-9/btcvanity/internal/store"
	"github.com/Amr-9/btcvanity/pkg/generator"
)

const (
	// DefaultPingInterval is how often idle WebSocket peers are pinged.
	DefaultPingInterval = 30 * time.Second

	// DefaultPongWait is how long a ping may go unanswered.
	DefaultPongWait = 5 * time.Second

	// shutdownTimeout bounds the graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second

	// readHeaderTimeout protects against slow header attacks.
	readHeaderTimeout = 10 * time.Second
)

// ErrEmptyPattern is returned when a pattern search has nothing to look for.
var ErrEmptyPattern = errors.New("a search pattern is required")

// Config holds the server dependencies. Store and Metrics are optional.
type Config struct {
	// Searcher runs REST and WebSocket searches. It must be safe for
	// concurrent use.
	Searcher generator.Searcher

	// ParallelThreshold is the pattern length from which searches run in
	// parallel. It only affects the informational messages sent to
	// clients.
	ParallelThreshold int

	Store   *store.Store
	Metrics *metrics.Metrics

	// AllowedOrigins lists the origins allowed for CORS and WebSocket
	// upgrades. "*" allows every origin.
	AllowedOrigins []string

	// Rand is the key entropy source. Nil selects crypto/rand.
	Rand io.Reader

	PingInterval time.Duration
	PongWait     time.Duration
}

// Server serves the HTTP and WebSocket API.
type Server struct {
	cfg      Config
	sessions *SessionStore
	upgrader *websocket.Upgrader
	handler  http.Handler
}

// New creates a server. Call Handler to mount it or Run to serve it.
func New(cfg Config) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = DefaultPongWait
	}

	s := &Server{
		cfg:      cfg,
		sessions: NewSessionStore(),
	}
	s.upgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /address-types", s.handleAddressTypes)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /generate-batch", s.handleGenerateBatch)
	mux.HandleFunc("POST /find-pattern", s.handleFindPattern)
	mux.HandleFunc("POST /derive", s.handleDerive)
	mux.HandleFunc("POST /validate", s.handleValidate)
	mux.HandleFunc("GET /results", s.handleResults)
	mux.HandleFunc("GET /ws/generate", s.handleWebSocket)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Bitcoin vanity address API",
		})
	})

	s.handler = s.allowCORS(mux)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sessions returns the store of open WebSocket sessions.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Run serves on listen until ctx is cancelled, then shuts down gracefully
// and closes every session.
func (s *Server) Run(ctx context.Context, listen string) error {
	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", listen, err)
	}

	return s.Serve(ctx, lis)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(lis)
	}()

	log.Infof("API server listening on %s", lis.Addr())

	select {
	case err := <-errChan:
		s.sessions.CloseAll()
		return err

	case <-ctx.Done():
	}

	log.Infof("API server shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown, so the
	// sessions are closed explicitly.
	s.sessions.CloseAll()
	err := httpServer.Shutdown(shutdownCtx)
	if serveErr := <-errChan; !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}

	return err
}

// saveResult persists a found address if a result store is configured.
// Failures are logged and otherwise ignored.
func (s *Server) saveResult(ctx context.Context, res *generator.Result,
	req *generator.Request, source store.Source) {

	if s.cfg.Store == nil {
		return
	}

	rec := store.NewRecord(res, req, source)
	if err := s.cfg.Store.Save(rec); err != nil {
		log.WarnS(ctx, "Unable to store result", err,
			slog.String("address", res.Address),
			slog.String("source", string(source)))
		return
	}

	log.DebugS(ctx, "Stored result", slog.Uint64("id", rec.ID),
		slog.String("source", string(source)))
}

// originAllowed reports whether origin is in the allow list.
func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// checkOrigin accepts WebSocket upgrades without an Origin header, from the
// serving host itself, or from an allowed origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host ||
		origin == "https://"+r.Host {

		return true
	}
	return s.originAllowed(origin)
}

// allowCORS echoes allowed origins back in the CORS headers and answers
// preflight requests.
func (s *Server) allowCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions &&
				r.Header.Get("Access-Control-Request-Method") != "" {

				w.Header().Set(
					"Access-Control-Allow-Headers",
					"Content-Type, Accept",
				)
				w.Header().Set(
					"Access-Control-Allow-Methods",
					"GET, POST, OPTIONS",
				)
				return
			}
		}

		handler.ServeHTTP(w, r)
	})
}
