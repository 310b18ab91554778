package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zeusync/helmsman/internal/core/events/bus"
	"github.com/zeusync/helmsman/internal/core/fleet"
	"github.com/zeusync/helmsman/internal/core/observability/log"
	"github.com/zeusync/helmsman/internal/core/systems/movement"
	"github.com/zeusync/helmsman/pkg/generic"
)

// Server exposes a fleet over HTTP and websocket.
type Server struct {
	registry *fleet.Registry
	events   bus.EventBus
	clock    movement.Clock
	hub      *hub
	buffers  *generic.Pool[*bytes.Buffer]

	http     *http.Server
	listener net.Listener
	sub      bus.Subscription
	observer *deliveryObserver

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	config Config
	logger log.Log
}

// Config holds server configuration
type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Websocket settings
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MaxMessageSize:  64 * 1024,
		SendBuffer:      256,
	}
}

// NewServer wires the HTTP routes and the websocket hub. events may be nil,
// in which case sockets receive replies but no movement pushes.
func NewServer(config Config, registry *fleet.Registry, events bus.EventBus, clock movement.Clock, logger log.Log) *Server {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultServerConfig().SendBuffer
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = DefaultServerConfig().MaxMessageSize
	}
	if clock == nil {
		clock = movement.SystemClock{}
	}
	if logger == nil {
		logger = log.Nop()
	}

	buffers := generic.NewPool(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { b.Reset() },
	)

	s := &Server{
		registry: registry,
		events:   events,
		clock:    clock,
		buffers:  buffers,
		config:   config,
		logger:   logger.With(log.String("component", "server")),
	}
	s.hub = newHub(s.logger)
	s.observer = &deliveryObserver{logger: s.logger}
	s.http = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	s.logger.Info("Server created", log.String("listen_addr", config.ListenAddr))
	return s
}

// Handler returns the routing table. It is usable without Start, e.g. under httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/classes", s.handleClasses)
	mux.HandleFunc("POST /api/vessels", s.handleSpawn)
	mux.HandleFunc("GET /api/vessels", s.handleList)
	mux.HandleFunc("GET /api/vessels/{id}", s.handleSnapshot)
	mux.HandleFunc("GET /api/vessels/{id}/predict", s.handlePredict)
	mux.HandleFunc("POST /api/vessels/{id}/move", s.handleMove)
	mux.HandleFunc("POST /api/vessels/{id}/halt", s.handleHalt)
	mux.HandleFunc("DELETE /api/vessels/{id}", s.handleRemove)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Start binds the listener, subscribes the hub to movement events and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return errors.Join(ErrListenerFailed, err)
	}
	s.listener = listener

	if err = s.subscribe(); err != nil {
		atomic.StoreInt32(&s.running, 0)
		_ = listener.Close()
		return err
	}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// subscribe forwards every movement event published on the bus to connected sockets
// and starts collecting delivery metrics.
func (s *Server) subscribe() error {
	if s.events == nil {
		return nil
	}
	sub, err := s.events.SubscribeAll(s.hub.onEvent)
	if err != nil {
		return err
	}
	s.sub = sub
	s.events.AddObserver(s.observer)
	return nil
}

func (s *Server) unsubscribe() {
	if s.events == nil {
		return
	}
	s.events.RemoveObserver(s.observer)
	if s.sub == nil {
		return
	}
	if err := s.events.Unsubscribe(s.sub); err != nil {
		s.logger.Warn("Failed to unsubscribe from movement events", log.Error(err))
	}
	s.sub = nil
}

// deliveryObserver reports bus deliveries whose handlers failed.
type deliveryObserver struct {
	logger log.Log
}

func (o *deliveryObserver) OnPublish(string, bus.Event) {}

func (o *deliveryObserver) OnDelivered(eventType string, handlers int, err error, durationMicros int64) {
	if err == nil {
		return
	}
	o.logger.Warn("Movement event delivery failed",
		log.String("type", eventType),
		log.Int("handlers", handlers),
		log.Int64("duration_us", durationMicros),
		log.Error(err))
}

// Stop shuts the HTTP server down gracefully and disconnects every socket.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	atomic.StoreInt32(&s.closed, 1)

	s.logger.Info("Stopping server")

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	s.unsubscribe()
	s.hub.closeAll()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown failed", log.Error(err))
		return err
	}

	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Addr is the bound address once Start succeeded, the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.ListenAddr
}

// Clients reports the number of connected sockets.
func (s *Server) Clients() int {
	return s.hub.len()
}
