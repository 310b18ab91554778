package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/helmsman/internal/core/events/bus"
	"github.com/zeusync/helmsman/internal/core/fleet"
	"github.com/zeusync/helmsman/internal/core/observability/log"
	"github.com/zeusync/helmsman/internal/core/systems/movement"
	"github.com/zeusync/helmsman/internal/core/systems/physics"
)

const writeWait = 10 * time.Second

// Socket actions
const (
	ActionSpawn    = "spawn"
	ActionMove     = "move"
	ActionHalt     = "halt"
	ActionPredict  = "predict"
	ActionSnapshot = "snapshot"
	ActionEvent    = "event"
	ActionError    = "error"
)

// Command is a client to server socket message.
type Command struct {
	Action string  `json:"action"`
	ID     string  `json:"id,omitempty"`
	Class  string  `json:"class,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	At     int64   `json:"at,omitempty"`
	Near   bool    `json:"near,omitempty"`
}

// Reply is a server to client socket message: either the answer to a Command
// or a pushed movement event.
type Reply struct {
	Action   string          `json:"action"`
	Vessel   *fleet.Snapshot `json:"vessel,omitempty"`
	Position *physics.Vec2   `json:"position,omitempty"`
	At       int64           `json:"at,omitempty"`
	Event    *EventMessage   `json:"event,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type EventMessage struct {
	Type   string         `json:"type"`
	Vessel string         `json:"vessel"`
	Data   movement.Event `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans movement events out to every connected socket.
type hub struct {
	clients map[*client]struct{}
	mu      sync.Mutex
	logger  log.Log
}

func newHub(logger log.Log) *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// deliver queues msg without blocking. A client whose buffer is full loses the message.
func (h *hub) deliver(c *client, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("Socket send buffer full, dropping message",
			log.String("remote", c.conn.RemoteAddr().String()))
	}
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Socket send buffer full, dropping event",
				log.String("remote", c.conn.RemoteAddr().String()))
		}
	}
}

// onEvent is subscribed to the bus. It runs on the publisher's goroutine, which holds
// the vessel lock, so it must not call back into the registry.
func (h *hub) onEvent(e bus.Event) error {
	data, ok := e.Data().(movement.Event)
	if !ok {
		return nil
	}
	msg, err := json.Marshal(Reply{
		Action: ActionEvent,
		Event:  &EventMessage{Type: e.Type(), Vessel: e.Source(), Data: data},
	})
	if err != nil {
		return err
	}
	h.broadcast(msg)
	return nil
}

func (s *Server) upgrader() *websocket.Upgrader {
	up := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(s.config.AllowedOrigins) > 0 {
		up.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(s.config.AllowedOrigins, r.Header.Get("Origin"))
		}
	}
	return up
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.closed) == 1 {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}
	conn.SetReadLimit(s.config.MaxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, s.config.SendBuffer)}
	s.hub.add(c)
	s.logger.Info("Socket connected", log.String("remote", conn.RemoteAddr().String()))

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Server) writeLoop(c *client) {
	defer func() { _ = c.conn.Close() }()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.logger.Debug("Socket write failed", log.Error(err))
			s.hub.remove(c)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (s *Server) readLoop(c *client) {
	defer func() {
		s.hub.remove(c)
		s.logger.Info("Socket disconnected", log.String("remote", c.conn.RemoteAddr().String()))
	}()

	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				s.reply(c, Reply{Action: ActionError, Error: ErrInvalidMessage.Error()})
				continue
			}
			return
		}
		s.reply(c, s.execute(cmd))
	}
}

func (s *Server) reply(c *client, r Reply) {
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(r); err != nil {
		s.logger.Error("Failed to encode reply", log.Error(err))
		return
	}
	msg := make([]byte, buf.Len())
	copy(msg, buf.Bytes())
	s.hub.deliver(c, msg)
}

// execute runs one socket command against the registry.
func (s *Server) execute(cmd Command) Reply {
	reply := Reply{Action: cmd.Action}
	fail := func(err error) Reply {
		reply.Error = err.Error()
		return reply
	}

	if cmd.Action == ActionSpawn {
		snap, err := s.spawn(SpawnRequest{Class: cmd.Class, X: cmd.X, Y: cmd.Y, Near: cmd.Near})
		if err != nil {
			return fail(err)
		}
		reply.Vessel = &snap
		return reply
	}

	id, err := parseVesselID(cmd.ID)
	if err != nil {
		return fail(err)
	}
	at := cmd.At
	if at == 0 {
		at = s.clock.NowMillis()
	}

	var snap fleet.Snapshot
	switch cmd.Action {
	case ActionMove:
		snap, err = s.registry.Move(id, physics.V2(cmd.X, cmd.Y))
	case ActionHalt:
		snap, err = s.registry.Halt(id)
	case ActionSnapshot:
		snap, err = s.registry.Snapshot(id, at)
	case ActionPredict:
		var pos physics.Vec2
		if pos, err = s.registry.Predict(id, at); err != nil {
			return fail(err)
		}
		reply.Position = &pos
		reply.At = at
		return reply
	default:
		return fail(fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action))
	}
	if err != nil {
		return fail(err)
	}
	reply.Vessel = &snap
	return reply
}
