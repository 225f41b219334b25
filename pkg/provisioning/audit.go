package provisioning

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshwire/wgmesh/pkg/model"
)

const auditRingCap = 500

// auditRing is the bounded in-memory mapping from interface name to a
// finite deque of entries, newest first, tail-dropped at auditRingCap per
// interface. Its lifetime is the process: nothing here survives a restart.
type auditRing struct {
	mu      sync.RWMutex
	entries map[string][]model.AuditEntry
	subs    []func(model.AuditEntry)
}

func newAuditRing() *auditRing {
	return &auditRing{entries: map[string][]model.AuditEntry{}}
}

// subscribe registers fn to be called, outside the ring's lock, with every
// entry appended after this call. fn runs synchronously on the appending
// goroutine, so the appender waits until every subscriber returns.
func (r *auditRing) subscribe(fn func(model.AuditEntry)) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

func (r *auditRing) append(iface, actor, action, target, detail string) model.AuditEntry {
	entry := model.AuditEntry{
		ID:        uuid.NewString(),
		Interface: iface,
		Actor:     actor,
		Action:    action,
		Target:    target,
		Detail:    detail,
		Timestamp: time.Now(),
	}

	r.mu.Lock()
	deque := append([]model.AuditEntry{entry}, r.entries[iface]...)
	if len(deque) > auditRingCap {
		deque = deque[:auditRingCap]
	}
	r.entries[iface] = deque
	subs := append([]func(model.AuditEntry){}, r.subs...)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(entry)
	}
	return entry
}

// page returns up to limit entries for iface starting immediately after
// cursor (an entry id), and the cursor to pass for the next page — set
// only when a full page was returned.
func (r *auditRing) page(iface string, limit int, cursor string) ([]model.AuditEntry, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filtered := r.entries[iface]

	start := 0
	if cursor != "" {
		for i, e := range filtered {
			if e.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(filtered) {
		return nil, ""
	}

	end := start + limit
	var next string
	if end < len(filtered) {
		next = filtered[end-1].ID
	} else {
		end = len(filtered)
	}
	return filtered[start:end], next
}
