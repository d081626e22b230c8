package domain

import "time"

// Lifecycle event types emitted to the audit stream
const (
	EventActionProposed    = "action_proposed"
	EventActionApproved    = "action_approved"
	EventActionRejected    = "action_rejected"
	EventActionExecuted    = "action_executed"
	EventRollbackRequested = "rollback_requested"
	EventRollbackApproved  = "rollback_approved"
	EventRollbackRejected  = "rollback_rejected"
	EventRollbackExecuted  = "rollback_executed"
)

type AuditEvent struct {
	Service    string                 `json:"service"`
	EventType  string                 `json:"event_type"`
	EntityID   string                 `json:"entity_id"`
	TenantID   string                 `json:"tenant_id,omitempty"`
	Actor      string                 `json:"actor,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}
