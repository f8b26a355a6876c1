package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"restep/internal/core"
	"restep/internal/metrics"
)

const (
	// MaxStreamsTotal caps snapshot streams across all clients
	MaxStreamsTotal = 256

	// wsWriteWait bounds a single write to a slow client
	wsWriteWait = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Use the centralized origin checker
		if IsAllowedOrigin(origin) {
			return true
		}

		// Log rejected origin for security monitoring
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		metrics.RecordConnectionRejected("origin")
		return false
	},
}

// SnapshotSource is anything that publishes world snapshots.
type SnapshotSource interface {
	GetSnapshot() core.WorldSnapshot
}

type wsClient struct {
	conn *websocket.Conn
	addr string
}

// WebSocketHub streams world snapshots to remote viewers. Per-client
// stream slots come from the server's ClientLimiter.
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	limiter *ClientLimiter
}

// NewWebSocketHub creates a hub drawing stream slots from limiter.
func NewWebSocketHub(limiter *ClientLimiter) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		limiter:    limiter,
	}
}

// Start runs the hub on its own goroutine.
func (h *WebSocketHub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Run()
	}()
}

// Run services the hub until Stop is called.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Viewer connected from %s (%d total)", client.addr, count)
			metrics.UpdateWSConnections(count)

		case conn := <-h.unregister:
			if h.remove(conn) {
				count := h.ClientCount()
				log.Printf("📱 Viewer disconnected (%d remaining)", count)
				metrics.UpdateWSConnections(count)
			}

		case message := <-h.broadcast:
			var failed []*websocket.Conn
			h.mu.RLock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range failed {
				h.remove(conn)
			}
			if len(failed) > 0 {
				metrics.UpdateWSConnections(h.ClientCount())
			}
			metrics.IncrementWSMessages()
		}
	}
}

// remove closes conn and releases its stream slot. It reports whether conn
// was registered.
func (h *WebSocketHub) remove(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[conn]
	if !ok {
		return false
	}
	h.limiter.ReleaseStream(client.addr)
	delete(h.clients, conn)
	conn.Close()
	return true
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, client := range h.clients {
		h.limiter.ReleaseStream(client.addr)
		conn.Close()
		delete(h.clients, conn)
	}
	metrics.UpdateWSConnections(0)
}

// Stop closes every connection and ends Run and the broadcast loop.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	jsonBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- jsonBytes:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop streams each new snapshot at most once per interval.
// Snapshots are skipped while nobody is connected or nothing has ticked.
func (h *WebSocketHub) StartBroadcastLoop(source SnapshotSource, interval time.Duration) {
	ticker := time.NewTicker(interval)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer ticker.Stop()

		var lastSeq uint64
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
			}

			if h.ClientCount() == 0 {
				continue
			}
			snapshot := source.GetSnapshot()
			if snapshot.Sequence == lastSeq {
				continue
			}
			lastSeq = snapshot.Sequence
			h.Broadcast("world:snapshot", snapshot)
		}
	}()
}

// HandleWebSocket upgrades a viewer connection and registers it with the
// hub. Viewers only listen; the read loop exists to notice the close.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	addr := h.limiter.ClientAddr(r)

	if total := h.ClientCount(); total >= MaxStreamsTotal {
		log.Printf("⚠️ Stream rejected: total limit reached (%d)", total)
		metrics.RecordConnectionRejected("ws_total_limit")
		writeError(w, "too many streams", http.StatusServiceUnavailable)
		return
	}
	if !h.limiter.AcquireStream(addr) {
		log.Printf("⚠️ Stream rejected from %s: per-client limit reached", addr)
		metrics.RecordConnectionRejected("ws_client_limit")
		writeError(w, "too many streams from this client", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.limiter.ReleaseStream(addr)
		return
	}

	client := &wsClient{conn: conn, addr: addr}
	select {
	case h.register <- client:
	case <-h.done:
		h.limiter.ReleaseStream(addr)
		conn.Close()
		return
	}

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()
}
