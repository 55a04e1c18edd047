// Package telemetry serves controller status over HTTP and WebSocket so
// dashboards and bring-up tools can watch (and command) the motor live.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"bldc-go/pkg/controller"
	"bldc-go/pkg/log"
	"bldc-go/pkg/metrics"
)

// StatusSource supplies controller snapshots.
type StatusSource interface {
	Status() controller.Status
}

// CommandSink accepts operator commands arriving over the wire.
type CommandSink interface {
	SetCommand(speed uint16, forward bool, torque uint16, rampPercent uint8)
	Stop()
}

// Config holds server settings.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":7220".
	Addr string

	// Source supplies status snapshots; required.
	Source StatusSource

	// Sink, when set, enables the command methods over WebSocket.
	Sink CommandSink

	// Registry, when set, is exposed at /metrics.
	Registry *metrics.Registry
}

// Server is the telemetry endpoint.
type Server struct {
	cfg    Config
	logger *log.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	clientMu sync.RWMutex
	clients  map[int64]*wsClient
	nextID   int64

	running atomic.Bool
}

// New creates a telemetry server.
func New(cfg Config) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  log.GetLogger("telemetry"),
		clients: make(map[int64]*wsClient),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s
}

// Start begins serving; it blocks until Shutdown.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/websocket", s.handleWebSocket)
	if s.cfg.Registry != nil {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
			w.Write([]byte(s.cfg.Registry.Gather()))
		})
	}

	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.running.Store(true)
	s.logger.Info("listening on %s", s.cfg.Addr)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server and disconnects all clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.clientMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[int64]*wsClient)
	s.clientMu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

// Publish pushes a status snapshot to every connected client.
func (s *Server) Publish(status controller.Status) {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for _, c := range s.clients {
		c.send(statusFrame{Event: "status", Status: status})
	}
}

// PublishEstimate pushes one interval estimator measurement.
func (s *Server) PublishEstimate(period uint32) {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for _, c := range s.clients {
		c.send(estimateFrame{Event: "estimate", Period: period})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.cfg.Source.Status())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &wsClient{
		id:     atomic.AddInt64(&s.nextID, 1),
		conn:   conn,
		server: s,
		sendCh: make(chan any, 64),
		done:   make(chan struct{}),
	}
	s.clientMu.Lock()
	s.clients[c.id] = c
	s.clientMu.Unlock()

	go c.writePump()
	go c.readPump()

	// Seed the new client with the current state.
	c.send(statusFrame{Event: "status", Status: s.cfg.Source.Status()})
}

func (s *Server) removeClient(c *wsClient) {
	s.clientMu.Lock()
	delete(s.clients, c.id)
	s.clientMu.Unlock()
}

type statusFrame struct {
	Event  string            `json:"event"`
	Status controller.Status `json:"status"`
}

type estimateFrame struct {
	Event  string `json:"event"`
	Period uint32 `json:"period"`
}

// commandRequest is an incoming WebSocket command.
type commandRequest struct {
	Method string `json:"method"`
	Params struct {
		Speed       uint16 `json:"speed"`
		Direction   string `json:"direction"`
		Torque      uint16 `json:"torque"`
		RampPercent uint8  `json:"ramp_percent"`
	} `json:"params"`
}

type commandResponse struct {
	Event string `json:"event"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// wsClient is one WebSocket connection.
type wsClient struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	sendCh chan any
	done   chan struct{}
	once   sync.Once
}

func (c *wsClient) send(msg any) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		// Slow consumer; drop rather than stall the tick loop.
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(16 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.WithError(err).Debug("websocket read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var req commandRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send(commandResponse{Event: "command", Error: "parse error"})
		return
	}
	if c.server.cfg.Sink == nil {
		c.send(commandResponse{Event: "command", Error: "commands disabled"})
		return
	}

	switch req.Method {
	case "set_command":
		c.server.cfg.Sink.SetCommand(
			req.Params.Speed,
			req.Params.Direction != "reverse",
			req.Params.Torque,
			req.Params.RampPercent,
		)
		c.send(commandResponse{Event: "command", OK: true})
	case "stop":
		c.server.cfg.Sink.Stop()
		c.send(commandResponse{Event: "command", OK: true})
	default:
		c.send(commandResponse{Event: "command", Error: "unknown method " + req.Method})
	}
}
