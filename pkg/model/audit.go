package model

import "time"

// AuditEntry captures one operation against a managed interface.
type AuditEntry struct {
	ID        string    `json:"id"`
	Interface string    `json:"interface"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
