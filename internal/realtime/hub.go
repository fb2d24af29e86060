// Package realtime fans pipeline change notifications out to websocket
// subscribers, one room per tenant. The projector stays pure; UIs listen
// here to know when to recompute.
package realtime

import (
	"sync"

	"pipecrm/internal/pipeline"
)

type Hub struct {
	mu      sync.RWMutex
	tenants map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{tenants: make(map[string]map[*Conn]struct{})}
}

func (h *Hub) Register(tenantID string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tenants[tenantID] == nil {
		h.tenants[tenantID] = make(map[*Conn]struct{})
	}
	h.tenants[tenantID][conn] = struct{}{}
}

func (h *Hub) Unregister(tenantID string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.tenants[tenantID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.tenants, tenantID)
		}
	}
	_ = conn.Close()
}

// Broadcast pushes one change event to every subscriber of the tenant.
// Write failures are left to the subscriber's Drain loop to notice.
func (h *Hub) Broadcast(tenantID string, ev pipeline.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.tenants[tenantID] {
		_ = conn.WriteJSON(ev)
	}
}
