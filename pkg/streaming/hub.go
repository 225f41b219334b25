// Package streaming fans the provisioning service's audit entries out to
// live websocket subscribers, grounded on the hub-with-mutex pattern: a
// map of connections guarded by a mutex, write failures drop the
// subscriber rather than blocking the appender.
package streaming

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/wlog"
)

// Hub holds the set of connected audit-stream subscribers, optionally
// filtered per-connection to one interface.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[*websocket.Conn]string // conn -> interface filter, "" means all
}

// NewHub returns an empty Hub that accepts upgrades from any origin, as
// the API is expected to sit behind its own reverse proxy / auth layer.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		subs:     map[*websocket.Conn]string{},
	}
}

// HandleAuditStream upgrades the connection and registers it as an audit
// subscriber. An optional "interface" query parameter filters the stream
// to that interface only.
func (h *Hub) HandleAuditStream(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("interface")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log := wlog.Component("streaming")
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.subs[conn] = filter
	h.mu.Unlock()

	go h.readLoop(conn)
}

// readLoop exists only to detect disconnects; the client never sends this
// hub anything meaningful.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.subs, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast fans entry out to every subscriber whose filter matches (empty
// filter matches everything). Intended to be passed directly as the
// callback to provisioning.Service.Subscribe.
func (h *Hub) Broadcast(entry model.AuditEntry) {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.subs))
	for conn, filter := range h.subs {
		if filter == "" || filter == entry.Interface {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	for _, conn := range targets {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.remove(conn)
		}
	}
}
