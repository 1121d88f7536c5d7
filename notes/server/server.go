package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/notes/account"
	"github.com/ValentinKolb/dNotes/notes/auth"
	"github.com/ValentinKolb/dNotes/notes/dispatch"
	"github.com/ValentinKolb/dNotes/notes/metrics"
	"github.com/ValentinKolb/dNotes/notes/notestore"
	"github.com/ValentinKolb/dNotes/notes/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var log = logger.GetLogger("notes")

const (
	indexPage       = "<!DOCTYPE html><html><head><meta charset='utf-8'><title>dNotes</title></head><body style='display:flex;align-items:center;justify-content:center;height:100vh;background:#1e2030;'><h1>📝</h1></body></html>"
	shutdownTimeout = 10 * time.Second
	closeWait       = time.Second
)

// Config of the notes server.
type Config struct {
	// Endpoint is the listen address, e.g. 127.0.0.1:5000
	Endpoint string

	AuthMode  auth.Mode
	AuthToken string

	// Metrics exposes /metrics in the Prometheus text format
	Metrics bool

	// SnapshotFile is restored on start and written every SnapshotInterval
	// and on shutdown. Only stores implementing store.ISnapshotter support it.
	SnapshotFile     string
	SnapshotInterval time.Duration

	// Guard serializes all calls to the store
	Guard bool

	// AllowedOrigins are the browser origins (scheme://host[:port]) that may
	// open /ws. "*" allows every origin, an empty list only the server's own.
	AllowedOrigins []string

	// OpenSignup lets anonymous clients create accounts in auth mode user
	OpenSignup bool

	// MaxMessageSize bounds a single inbound frame, zero means session.DefaultMaxMessageSize
	MaxMessageSize int64

	// HashParams are used for account passwords, zero means account.DefaultHashParams
	HashParams account.HashParams
}

// Server serves the WebSocket note protocol, the account endpoints and the
// small HTTP surface around them.
type Server struct {
	config   Config
	backend  store.IStore
	notes    *notestore.Store
	handler  *session.Handler
	accounts *account.Service
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	sessions *xsync.MapOf[uint64, *websocket.Conn]
	nextID   atomic.Uint64

	// mu orders wg.Add of new sessions against closing
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New wires the notes components on top of backend.
func New(config Config, backend store.IStore) (*Server, error) {
	if backend == nil {
		return nil, errors.New("a store is required")
	}

	var opts []notestore.Option
	if config.Guard {
		opts = append(opts, notestore.WithGuard())
	}
	notes := notestore.New(backend, opts...)

	gate, err := auth.New(config.AuthMode, config.AuthToken, notes)
	if err != nil {
		return nil, err
	}

	if config.SnapshotFile != "" {
		if _, ok := backend.(store.ISnapshotter); !ok {
			return nil, fmt.Errorf("the store does not support snapshots, unset the snapshot file")
		}
	}

	params := config.HashParams
	if params == (account.HashParams{}) {
		params = account.DefaultHashParams
	}

	checkOrigin, err := originChecker(config.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	s := &Server{
		config:  config,
		backend: backend,
		notes:   notes,
		handler: &session.Handler{
			Gate:           gate,
			Dispatcher:     dispatch.New(notes),
			Metrics:        m,
			MaxMessageSize: config.MaxMessageSize,
		},
		metrics:  m,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		sessions: xsync.NewMapOf[uint64, *websocket.Conn](),
	}
	if gate.Mode() == auth.ModeUser {
		s.accounts, err = account.New(notes, gate, account.Config{Params: params, OpenSignup: config.OpenSignup})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// originChecker builds the CheckOrigin function of the upgrader.
// nil keeps gorilla's same-origin check.
func originChecker(allowed []string) (func(r *http.Request) bool, error) {
	if len(allowed) == 0 {
		return nil, nil
	}

	origins := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSuffix(strings.TrimSpace(origin), "/")
		if origin == "*" {
			return func(*http.Request) bool { return true }, nil
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid allowed origin %q, expected scheme://host[:port]", origin)
		}
		origins[strings.ToLower(u.Scheme+"://"+u.Host)] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// not a browser
			return true
		}
		if origins[strings.ToLower(origin)] {
			return true
		}
		log.Infof("rejected WebSocket upgrade from origin %q", origin)
		return false
	}, nil
}

// Metrics returns the metrics of the server.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// --------------------------------------------------------------------------
// HTTP
// --------------------------------------------------------------------------

// Router returns the HTTP handler of the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexPage))
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	if s.config.Metrics {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4")
			s.metrics.WritePrometheus(w)
		})
	}
	if s.accounts != nil {
		r.Mount("/account", s.accounts.Routes())
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.notes.Exists(notestore.Prefix); err != nil {
		log.Warningf("health check failed: %v", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ok"))
}

// beginSession registers a session with the shutdown wait group, false once closing started
func (s *Server) beginSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.beginSession() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the error response
		log.Debugf("upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	id := s.nextID.Add(1)
	s.sessions.Store(id, conn)
	defer s.sessions.Delete(id)

	// closeSessions may have walked the registry before the store above
	if s.isClosing() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		_ = conn.Close()
		return
	}

	if err := s.handler.New(conn, r.RemoteAddr).Serve(r); err != nil {
		log.Debugf("session %s: %v", r.RemoteAddr, err)
	}
}

// closeSessions sends a going-away close frame to every open session and
// waits until their handlers returned or closeWait passed.
func (s *Server) closeSessions() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	s.sessions.Range(func(id uint64, conn *websocket.Conn) bool {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeWait):
		s.sessions.Range(func(id uint64, conn *websocket.Conn) bool {
			_ = conn.Close()
			return true
		})
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Run restores the snapshot, serves until ctx is done and shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.restore(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.config.Endpoint,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("notes server listening on %s (auth mode %s)", s.config.Endpoint, s.handler.Gate.Mode())
		errCh <- srv.ListenAndServe()
	}()

	snapshotCtx, stopSnapshots := context.WithCancel(ctx)
	defer stopSnapshots()
	go s.snapshotLoop(snapshotCtx)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("notes server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Infof("shutting down notes server")
	stopSnapshots()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeSessions()

	if serr := s.snapshot(); serr != nil {
		err = errors.Join(err, serr)
	}
	return err
}

func (s *Server) restore() error {
	if s.config.SnapshotFile == "" {
		return nil
	}
	err := s.backend.(store.ISnapshotter).Restore(s.config.SnapshotFile)
	switch {
	case err == nil:
		log.Infof("restored snapshot %s", s.config.SnapshotFile)
		return nil
	case errors.Is(err, fs.ErrNotExist):
		log.Infof("no snapshot at %s, starting empty", s.config.SnapshotFile)
		return nil
	default:
		return err
	}
}

func (s *Server) snapshot() error {
	if s.config.SnapshotFile == "" {
		return nil
	}
	if err := s.backend.(store.ISnapshotter).Snapshot(s.config.SnapshotFile); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	log.Debugf("wrote snapshot %s", s.config.SnapshotFile)
	return nil
}

func (s *Server) snapshotLoop(ctx context.Context) {
	if s.config.SnapshotFile == "" || s.config.SnapshotInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.config.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.snapshot(); err != nil {
				log.Errorf("%v", err)
			}
		}
	}
}
