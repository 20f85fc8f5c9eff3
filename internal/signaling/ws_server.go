package signaling

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamglass/signal-relay/internal/config"
	"github.com/streamglass/signal-relay/internal/metrics"
	"github.com/streamglass/signal-relay/internal/origin"
	"github.com/streamglass/signal-relay/internal/ratelimit"
)

const wsWriteWait = 1 * time.Second

// WebSocketServer implements GET /ws, the signaling endpoint, plus
// GET /streams as a plain HTTP view of the active-stream set.
//
// The server owns the transport: upgrades, per-connection write
// serialization, read limits and the rate limiter. All routing decisions
// live in the Hub.
type WebSocketServer struct {
	cfg config.Config
	hub *Hub
	log *slog.Logger

	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewWebSocketServer(cfg config.Config, hub *Hub, m *metrics.Metrics, logger *slog.Logger) *WebSocketServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := &WebSocketServer{
		cfg:      cfg,
		hub:      hub,
		log:      logger,
		metrics:  m,
		upgrader: websocket.Upgrader{},
	}
	srv.upgrader.CheckOrigin = srv.checkOrigin
	return srv
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	originHeader := strings.TrimSpace(r.Header.Get("Origin"))
	if originHeader == "" {
		return true
	}

	normalizedOrigin, originHost, ok := origin.NormalizeHeader(originHeader)
	if !ok {
		return false
	}
	return origin.IsAllowed(normalizedOrigin, originHost, r.Host, s.cfg.AllowedOrigins)
}

// RegisterRoutes mounts the signaling endpoints on mux.
func (s *WebSocketServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /streams", s.handleStreams)
}

func (s *WebSocketServer) handleStreams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Streams []string `json:"streams"`
	}{Streams: s.hub.ActiveStreams()})
}

func (s *WebSocketServer) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	conn := newWSConn(ws)
	defer conn.Kill()
	defer s.hub.HandleDisconnect(conn)

	s.log.Info("ws_connected", "remote_addr", r.RemoteAddr)
	defer s.log.Info("ws_closed", "remote_addr", r.RemoteAddr)

	ws.SetReadLimit(s.cfg.MaxMessageBytes)
	ws.SetPongHandler(func(string) error {
		s.hub.MarkAlive(conn)
		return nil
	})

	var limiter *ratelimit.TokenBucket
	if s.cfg.MaxMessagesPerSecond > 0 {
		rate := int64(s.cfg.MaxMessagesPerSecond)
		limiter = ratelimit.NewTokenBucket(ratelimit.RealClock{}, rate, rate)
	}

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			// Covers remote close, read-limit violations and liveness kills;
			// the deferred disconnect handler does the rest.
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if limiter != nil && !limiter.Allow(1) {
			s.metrics.Inc(metrics.DropRateLimited)
			s.log.Warn("closing connection exceeding message rate", "remote_addr", r.RemoteAddr)
			conn.closeWith(websocket.ClosePolicyViolation, "message rate exceeded")
			return
		}
		s.hub.HandleMessage(conn, data)
	}
}

// wsConn adapts one gorilla connection to the hub's Conn interface.
//
// gorilla permits one concurrent writer per connection, and hub broadcasts
// can hit the same connection from several request goroutines, so every
// write path serializes on writeMu and carries a deadline. A peer that
// stops draining its socket loses messages instead of stalling the hub.
type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Send(msg Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = c.ws.WriteJSON(msg)
}

func (c *wsConn) Ping() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (c *wsConn) Kill() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
	})
}

func (c *wsConn) closeWith(code int, reason string) {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
	c.writeMu.Unlock()
	c.Kill()
}

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
