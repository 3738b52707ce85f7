// WebSocket control socket: the same command set as the REST surface,
// carried as typed messages with request-id acknowledgments, plus
// state_update broadcasts to every connected socket.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/luna-sim/internal/engine"
	"github.com/talgya/luna-sim/internal/stream"
)

const (
	wsWriteWait   = 5 * time.Second
	wsReadLimit   = 64 * 1024
	wsSendBuffer  = 32
	wsPingPeriod  = 30 * time.Second
	wsReadTimeout = 90 * time.Second
)

// wsRequest is an inbound control message.
type wsRequest struct {
	RequestID string `json:"request_id"`
	engine.Command
}

// wsReply is an outbound message: an ack keyed to a request id, an error,
// or a state_update broadcast.
type wsReply struct {
	Type      string               `json:"type"` // ack, error, state_update
	RequestID string               `json:"request_id,omitempty"`
	OK        bool                 `json:"ok,omitempty"`
	Error     string               `json:"error,omitempty"`
	State     *engine.StateSummary `json:"state,omitempty"`
	Event     *stream.Event        `json:"event,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// wsHub tracks connected control sockets and fans state updates out to
// them.
type wsHub struct {
	orch *engine.Orchestrator
	bus  *stream.Bus

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newWSHub(orch *engine.Orchestrator, bus *stream.Bus) *wsHub {
	return &wsHub{
		orch: orch,
		bus:  bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// run pumps control-channel events to every client as state_update
// broadcasts. Blocks; run in a goroutine.
func (h *wsHub) run() {
	sub, err := h.bus.Subscribe(stream.ChannelControl)
	if err != nil {
		slog.Error("ws hub subscribe failed", "error", err)
		return
	}
	defer h.bus.Unsubscribe(sub)

	for ev := range sub.C {
		state := h.orch.Summary()
		event := ev
		h.broadcast(wsReply{Type: "state_update", State: &state, Event: &event})
	}
}

func (h *wsHub) broadcast(reply wsReply) {
	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow socket; drop the broadcast rather than stall the hub.
		}
	}
}

func (h *wsHub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// handleUpgrade upgrades the connection and runs the read loop; a writer
// goroutine drains the client's send queue.
func (h *wsHub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.add(client)
	slog.Info("control socket connected", "remote", conn.RemoteAddr())

	go h.writePump(client)
	h.readPump(client)
}

func (h *wsHub) writePump(c *wsClient) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *wsHub) readPump(c *wsClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		slog.Info("control socket disconnected", "remote", c.conn.RemoteAddr())
	}()

	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			h.send(c, wsReply{Type: "error", Error: "malformed command: " + err.Error()})
			continue
		}
		if req.Type == "" {
			h.send(c, wsReply{Type: "error", RequestID: req.RequestID, Error: "command field required"})
			continue
		}

		res := h.orch.Do(req.Command)
		state := res.State
		h.send(c, wsReply{
			Type:      "ack",
			RequestID: req.RequestID,
			OK:        res.OK,
			Error:     res.Error,
			State:     &state,
		})
	}
}

func (h *wsHub) send(c *wsClient, reply wsReply) {
	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
