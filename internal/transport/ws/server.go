package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelgate.ai/internal/protocol"
	"voxelgate.ai/internal/sim/gateway"
)

const (
	writeWait = 5 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = pongWait * 9 / 10
	queueLen  = 64
)

// Hub streams gateway events to websocket clients. It implements
// gateway.Sink; slow clients lose their oldest queued events.
type Hub struct {
	log     *log.Logger
	welcome func() protocol.WelcomeMsg

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

type client struct {
	out    chan []byte
	done   chan struct{}
	once   sync.Once
	kinds  map[gateway.Kind]bool
	dim    string
	remote string
}

func (c *client) close() { c.once.Do(func() { close(c.done) }) }

func (c *client) wants(e gateway.Event) bool {
	if c.dim != "" && e.Dimension != c.dim {
		return false
	}
	return len(c.kinds) == 0 || c.kinds[e.Kind]
}

// NewHub returns a hub that greets every client with welcome().
func NewHub(welcome func() protocol.WelcomeMsg, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		log:     logger,
		welcome: welcome,
		clients: map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Emit is called on the session goroutine and never blocks.
func (h *Hub) Emit(e gateway.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.clients) == 0 {
		return
	}
	b, err := json.Marshal(protocol.EventMsg{Type: protocol.TypeEvent, ProtocolVersion: protocol.Version, Event: e})
	if err != nil {
		h.log.Printf("marshal event: %v", err)
		return
	}
	for c := range h.clients {
		if !c.wants(e) {
			continue
		}
		if !sendLatest(c.out, b) {
			h.dropped.Add(1)
		}
	}
}

// sendLatest queues b, evicting the oldest entry when the queue is full.
// It reports false when something was evicted.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return false
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Sent() uint64    { return h.sent.Load() }
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Handler upgrades GET /v1/events. Optional query parameters: kinds
// (comma separated event kinds) and dimension.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := &client{
			out:    make(chan []byte, queueLen),
			done:   make(chan struct{}),
			dim:    r.URL.Query().Get("dimension"),
			remote: r.RemoteAddr,
		}
		if ks := r.URL.Query().Get("kinds"); ks != "" {
			c.kinds = map[gateway.Kind]bool{}
			for _, k := range strings.Split(ks, ",") {
				c.kinds[gateway.Kind(strings.ToUpper(strings.TrimSpace(k)))] = true
			}
		}

		if h.welcome != nil {
			if err := writeJSON(conn, h.welcome()); err != nil {
				return
			}
		}
		if !h.add(c) {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
		defer h.remove(c)

		// Writer goroutine.
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.writeLoop(conn, c)
		}()

		// Reader loop; clients only send control frames.
		conn.SetReadLimit(4 * 1024)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		c.close()
		wg.Wait()
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client) {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case b := <-c.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.log.Printf("client %s: %v", c.remote, err)
				c.close()
				_ = conn.Close()
				return
			}
			h.sent.Add(1)
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				_ = conn.Close()
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
