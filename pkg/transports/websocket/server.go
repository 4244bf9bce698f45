package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/harunnryd/parley/pkg/errorsx"
	"github.com/harunnryd/parley/pkg/frames"
	"github.com/harunnryd/parley/pkg/logging"
	"github.com/harunnryd/parley/pkg/session"
)

type Config struct {
	Addr           string        `mapstructure:"addr"`
	WebsocketPath  string        `mapstructure:"ws_path"`
	StaticDir      string        `mapstructure:"static_dir"`
	ReadLimitBytes int64         `mapstructure:"read_limit_bytes"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MetricsPath    string        `mapstructure:"metrics_path"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws/chat"
	}
	if c.ReadLimitBytes <= 0 {
		c.ReadLimitBytes = 1 << 20
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	return c
}

// Hub is the session side of the server. *session.Registry satisfies it.
type Hub interface {
	Register(conn session.Conn) (string, error)
	Dispatch(id string, f frames.Frame)
	Teardown(id string)
	Len() int
}

// Server accepts WebSocket clients and feeds their frames to a Hub.
type Server struct {
	cfg      Config
	hub      Hub
	metrics  http.Handler
	log      *slog.Logger
	upgrader gws.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	draining atomic.Bool
	conns    sync.WaitGroup
}

type Option func(*Server)

// WithMetricsHandler exposes h at the configured metrics path.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = logging.NewComponentLogger(log, "transport")
		}
	}
}

func New(cfg Config, hub Hub, opts ...Option) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg: cfg,
		hub: hub,
		log: logging.NewComponentLogger(slog.Default(), "transport"),
		upgrader: gws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full HTTP surface wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.WebsocketPath, s)
	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle(s.cfg.MetricsPath, s.metrics)
	}
	mux.HandleFunc("/", s.handleIndex)
	return s.cors(mux)
}

// Start binds the listener and serves in the background. Bind failures are
// returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonConfig)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("http_server_listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("ws_path", s.cfg.WebsocketPath))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http_server_error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown refuses new upgrades and stops the HTTP server. Hijacked
// WebSocket connections are not tracked by net/http, so it also waits for
// read loops that are still running until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket_upgrade_failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}
	ws.SetReadLimit(s.cfg.ReadLimitBytes)
	c := newConn(ws, s.cfg.WriteTimeout)

	id, err := s.hub.Register(c)
	if err != nil {
		s.log.Warn("session_register_refused", slog.String("error", err.Error()))
		_ = c.Close()
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()
	defer s.hub.Teardown(id)

	s.log.Debug("websocket_connected", slog.String("session_id", id), slog.String("remote_addr", r.RemoteAddr))
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if !gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) && !c.closed.Load() {
				s.log.Info("websocket_read_ended", slog.String("session_id", id), slog.String("error", err.Error()))
			}
			return
		}
		switch kind {
		case gws.TextMessage:
			s.hub.Dispatch(id, frames.Text(string(data)))
		case gws.BinaryMessage:
			s.hub.Dispatch(id, frames.Audio(data))
		}
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "healthy", Sessions: s.hub.Len()})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || s.cfg.StaticDir == "" {
		http.NotFound(w, r)
		return
	}
	index := filepath.Join(s.cfg.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "DELETE, GET, HEAD, OPTIONS, PATCH, POST, PUT")
				if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
					h.Set("Access-Control-Allow-Headers", req)
				}
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return s.originAllowed(origin)
}

// originAllowed matches either full origins ("https://app.example") or bare
// hosts ("app.example"). "*" allows everything.
func (s *Server) originAllowed(origin string) bool {
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range s.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		switch {
		case a == "":
			continue
		case a == "*":
			return true
		case strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://"):
			if strings.EqualFold(a, origin) {
				return true
			}
		case strings.EqualFold(a, originHost):
			return true
		}
	}
	return false
}
