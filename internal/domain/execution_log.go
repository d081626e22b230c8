package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution types
const (
	ExecutionTypeExecute  = "execute"
	ExecutionTypeRollback = "rollback"
)

// Execution statuses
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
)

// ExecutionLog is a write-once ledger row for one executor attempt.
// Exactly one row is appended per execute/rollback attempt, success or not.
type ExecutionLog struct {
	ID              string    `json:"id"`
	ActionRecordID  string    `json:"action_record_id"`
	ExecutionType   string    `json:"execution_type"`
	RequestPayload  string    `json:"request_payload,omitempty"`
	ResponsePayload string    `json:"response_payload,omitempty"`
	Status          string    `json:"status"`
	DurationMs      int64     `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewExecutionLog(actionRecordID, executionType, requestPayload, responsePayload, status string, duration time.Duration) *ExecutionLog {
	return &ExecutionLog{
		ID:              uuid.NewString(),
		ActionRecordID:  actionRecordID,
		ExecutionType:   executionType,
		RequestPayload:  requestPayload,
		ResponsePayload: responsePayload,
		Status:          status,
		DurationMs:      duration.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}
}

// AuditSummary is a read-time aggregation over the two ledger row kinds for
// one action record. Derived on query, never stored.
type AuditSummary struct {
	ActionRecordID      string     `json:"action_record_id"`
	ExecutionCount      int        `json:"execution_count"`
	ApprovalCount       int        `json:"approval_count"`
	LastExecutionStatus string     `json:"last_execution_status,omitempty"`
	LastExecutionAt     *time.Time `json:"last_execution_at,omitempty"`
	LastDecision        string     `json:"last_decision,omitempty"`
	LastDecisionAt      *time.Time `json:"last_decision_at,omitempty"`
}
