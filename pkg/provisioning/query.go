package provisioning

import "github.com/meshwire/wgmesh/pkg/model"

// AuditPage is the result of Audit: a page of entries plus the cursor for
// the next page, set only when a full page was returned.
type AuditPage struct {
	Entries    []model.AuditEntry
	NextCursor string
}

// Audit returns up to limit entries for name's own deque, newest-first,
// starting immediately after cursor, per §4.7(7). It never touches the
// state store or the runtime.
func (s *Service) Audit(name string, limit int, cursor string) AuditPage {
	name = normalizedInterface(name)
	if limit <= 0 {
		limit = 50
	}
	entries, next := s.audit.page(name, limit, cursor)
	return AuditPage{Entries: entries, NextCursor: next}
}
