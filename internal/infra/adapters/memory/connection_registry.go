package memory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/campuslive/signaling/internal/application/constant"
	"github.com/campuslive/signaling/internal/application/metric"
)

// ConnectionRegistry keeps the live websocket connections by connection id.
type ConnectionRegistry interface {
	Add(clientID string, conn *websocket.Conn)
	Remove(clientID string)

	Has(clientID string) bool

	// Write marshals payload as JSON and sends it on the client's
	// connection. Unknown ids and write failures are absorbed: outbound
	// sends are fire-and-forget.
	Write(clientID string, payload any)
}

type safeWS struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type connectionRegistry struct {
	// conns хранит map[client_id]*ws.conn
	conns map[string]*safeWS

	mu sync.RWMutex
}

func NewConnectionRegistry() ConnectionRegistry {
	return &connectionRegistry{
		conns: make(map[string]*safeWS, 10),
	}
}

func (r *connectionRegistry) Add(clientID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[clientID] = &safeWS{conn: conn}

	metric.IncrementWSActiveConnections()
}

func (r *connectionRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[clientID]; exists {
		delete(r.conns, clientID)

		metric.DecrementWSActiveConnections()
	}
}

func (r *connectionRegistry) Has(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.conns[clientID]
	return ok
}

func (r *connectionRegistry) Write(clientID string, payload any) {
	safews, ok := r.getSafeWS(clientID)
	if !ok {
		return
	}

	// Per-connection lock: broadcasts from different goroutines must not
	// interleave frames on one socket.
	safews.mu.Lock()
	defer safews.mu.Unlock()

	if err := safews.conn.WriteJSON(payload); err != nil {
		slog.Error(
			"write to websocket",
			slog.Any(constant.Error, err),
			slog.String(constant.ClientID, clientID),
		)
	}
}

func (r *connectionRegistry) getSafeWS(clientID string) (*safeWS, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[clientID]
	return conn, ok
}
