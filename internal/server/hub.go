package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"PortfolioSentinel/internal/model"
)

// Hub streams portfolio snapshots to websocket subscribers. The latest
// snapshot is sent on connect.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	last    []byte
	log     zerolog.Logger

	// nil accepts any origin
	originPatterns []string
}

type wsClient struct {
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// Broadcast sends the snapshot to every subscriber. Slow subscribers miss
// updates rather than block the caller.
func (h *Hub) Broadcast(snap model.PortfolioSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal snapshot")
		return
	}

	h.mu.Lock()
	h.last = data
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Msg("subscriber too slow, dropping snapshot")
		}
	}
}

// AllowOrigins restricts upgrades to the given origins, written as for
// CORS ("https://app.example.com", "https://*.example.com"). An empty
// list or "*" accepts any origin. Same-host requests are always accepted.
func (h *Hub) AllowOrigins(origins []string) {
	var patterns []string
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			patterns = nil
			break
		}
		if _, host, found := strings.Cut(o, "://"); found {
			o = host
		}
		if o = strings.TrimSuffix(o, "/"); o != "" {
			patterns = append(patterns, o)
		}
	}

	h.mu.Lock()
	h.originPatterns = patterns
	h.mu.Unlock()
}

func (h *Hub) acceptOptions() *websocket.AcceptOptions {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.originPatterns == nil {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return h.last
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// ServeHTTP handles GET /api/ws.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Warn().Err(err).Str("origin", r.Header.Get("Origin")).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	c := &wsClient{send: make(chan []byte, 8)}
	last := h.add(c)
	defer h.remove(c)
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("subscriber connected")

	// reading is required to process control frames; the stream is one-way
	ctx := conn.CloseRead(r.Context())

	if last != nil {
		if err := write(ctx, conn, last); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case data := <-c.send:
			if err := write(ctx, conn, data); err != nil {
				h.log.Debug().Err(err).Msg("subscriber write failed")
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
