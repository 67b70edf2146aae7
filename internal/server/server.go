package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"berth/internal/agents"
	"berth/internal/metrics"
	"berth/internal/notify"
	"berth/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
	// DefaultPingInterval is how often websocket peers are pinged.
	DefaultPingInterval = 30 * time.Second

	writeWait        = 10 * time.Second
	maxAgentMessage  = 4096
	maxClientMessage = 1024
)

// BundleReceiver accepts uploaded bundles.
type BundleReceiver interface {
	Receive(bundleName string, r io.Reader) (string, error)
}

// Options configures the HTTP server.
type Options struct {
	Host string
	Port int
	// SessionBuffer is the number of push messages buffered per client.
	SessionBuffer int
	// PingInterval is the websocket keepalive period. Peers that miss two
	// pings are treated as gone.
	PingInterval time.Duration
	// MaxBundleSize limits uploads in bytes. Zero means unlimited.
	MaxBundleSize int64
}

// Server exposes the agent handshake, the client push stream, bundle
// upload and metrics over HTTP.
type Server struct {
	opts     Options
	agents   *agents.Directory
	gateway  *notify.Gateway
	bundles  BundleReceiver
	metrics  *metrics.Recorder

	catalog    Catalog
	controller Controller

	upgrader websocket.Upgrader

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	done       chan struct{}
	conns      sync.WaitGroup
}

// New creates a server. recorder may be nil.
func New(opts Options, directory *agents.Directory, gateway *notify.Gateway, bundles BundleReceiver, recorder *metrics.Recorder) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.SessionBuffer <= 0 {
		opts.SessionBuffer = 64
	}
	return &Server{
		opts:    opts,
		agents:  directory,
		gateway: gateway,
		bundles: bundles,
		metrics: recorder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/agent", s.handleAgent)
	mux.HandleFunc("GET /ws/events", s.handleEvents)
	mux.HandleFunc("PUT /bundles/{name}", s.handleBundle)
	mux.Handle("GET /metrics", s.metrics.Handler())
	if s.catalog != nil && s.controller != nil {
		mux.HandleFunc("GET /services", s.handleList)
		mux.HandleFunc("GET /services/tree", s.handleTree)
		mux.HandleFunc("POST /services/{sid}/start", s.handleStart)
		mux.HandleFunc("POST /services/{sid}/stop", s.handleStop)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server", err, "HTTP server stopped")
		}
	}()

	logging.Info("Server", "Listening on %s", ln.Addr())
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting requests, closes websocket connections and waits
// for their handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	waited := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	body := io.Reader(r.Body)
	if s.opts.MaxBundleSize > 0 {
		body = http.MaxBytesReader(w, r.Body, s.opts.MaxBundleSize)
	}

	id, err := s.bundles.Receive(name, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		status := statusFor(err)
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		if status == http.StatusInternalServerError {
			logging.Error("Server", err, "Bundle upload %s failed", name)
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"operationId": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Server", "Writing response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
