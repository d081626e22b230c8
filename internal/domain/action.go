package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrActionNotFound  = errors.New("action record not found")
	ErrVersionConflict = errors.New("action record was modified concurrently")
)

// Forward lifecycle statuses
const (
	StatusProposed  = "proposed"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusExecuting = "executing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Rollback statuses (independent axis)
const (
	RollbackNone           = "none"
	RollbackManualRequired = "manual_required"
	RollbackAvailable      = "available"
	RollbackPending        = "pending"
	RollbackApproved       = "approved"
	RollbackRolledBack     = "rolled_back"
	RollbackFailed         = "rollback_failed"
)

// ValidStatuses returns list of valid forward statuses
func ValidStatuses() []string {
	return []string{StatusProposed, StatusApproved, StatusRejected, StatusExecuting, StatusCompleted, StatusFailed}
}

// ValidRollbackStatuses returns list of valid rollback statuses
func ValidRollbackStatuses() []string {
	return []string{RollbackNone, RollbackManualRequired, RollbackAvailable, RollbackPending, RollbackApproved, RollbackRolledBack, RollbackFailed}
}

// InvalidTransitionError reports a lifecycle transition attempted from the
// wrong source state. It is a conflict, never control flow.
type InvalidTransitionError struct {
	Attempted string
	From      string
	Required  []string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %q: current state is %q, requires %s",
		e.Attempted, e.From, strings.Join(e.Required, " or "))
}

// ActionRecord tracks one proposed remediation action through approval,
// execution and optional rollback. Fields other than the two status axes,
// the outcome/payload fields set during transitions, and the transition
// timestamps are immutable after creation. The record itself has no
// locking: racing transitions are arbitrated by the repository's
// optimistic Version check.
type ActionRecord struct {
	ID                     string     `json:"id"`
	TenantID               string     `json:"tenant_id"`
	RunID                  string     `json:"run_id"`
	ActionType             string     `json:"action_type"`
	ProposedPayload        string     `json:"proposed_payload,omitempty"`
	Status                 string     `json:"status"`
	RollbackStatus         string     `json:"rollback_status"`
	ExecutionPayload       string     `json:"execution_payload,omitempty"`
	Outcome                string     `json:"outcome,omitempty"`
	RollbackPayload        string     `json:"rollback_payload,omitempty"`
	RollbackOutcome        string     `json:"rollback_outcome,omitempty"`
	ManualRollbackGuidance string     `json:"manual_rollback_guidance,omitempty"`
	Version                int64      `json:"version"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	ExecutedAt             *time.Time `json:"executed_at,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	RolledBackAt           *time.Time `json:"rolled_back_at,omitempty"`
}

// ActionFilter narrows list queries.
type ActionFilter struct {
	TenantID string
	RunID    string
	Status   string
	Limit    int
	Offset   int
}

// NewActionRecord builds a record in Proposed state. Rollback availability
// is fixed here and never revisited: a rollback payload makes the action
// rollback-capable, manual guidance alone marks it manual, otherwise the
// action cannot be undone.
func NewActionRecord(tenantID, runID, actionType, proposedPayload, rollbackPayload, manualRollbackGuidance string) *ActionRecord {
	rollbackStatus := RollbackNone
	if rollbackPayload != "" {
		rollbackStatus = RollbackAvailable
	} else if manualRollbackGuidance != "" {
		rollbackStatus = RollbackManualRequired
	}

	now := time.Now().UTC()
	return &ActionRecord{
		ID:                     uuid.NewString(),
		TenantID:               tenantID,
		RunID:                  runID,
		ActionType:             actionType,
		ProposedPayload:        proposedPayload,
		Status:                 StatusProposed,
		RollbackStatus:         rollbackStatus,
		RollbackPayload:        rollbackPayload,
		ManualRollbackGuidance: manualRollbackGuidance,
		Version:                1,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func (a *ActionRecord) guard(attempted, current string, required ...string) error {
	for _, s := range required {
		if current == s {
			return nil
		}
	}
	return &InvalidTransitionError{Attempted: attempted, From: current, Required: required}
}

// Approve moves Proposed -> Approved.
func (a *ActionRecord) Approve() error {
	if err := a.guard("approve", a.Status, StatusProposed); err != nil {
		return err
	}
	a.Status = StatusApproved
	return nil
}

// Reject moves Proposed -> Rejected. Terminal.
func (a *ActionRecord) Reject() error {
	if err := a.guard("reject", a.Status, StatusProposed); err != nil {
		return err
	}
	a.Status = StatusRejected
	return nil
}

// MarkExecuting moves Approved -> Executing and stamps ExecutedAt.
func (a *ActionRecord) MarkExecuting() error {
	if err := a.guard("mark_executing", a.Status, StatusApproved); err != nil {
		return err
	}
	now := time.Now().UTC()
	a.Status = StatusExecuting
	a.ExecutedAt = &now
	return nil
}

// CompleteExecution moves Executing -> Completed and stores the payload
// sent to the executor plus its outcome.
func (a *ActionRecord) CompleteExecution(executionPayload, outcome string) error {
	if err := a.guard("complete_execution", a.Status, StatusExecuting); err != nil {
		return err
	}
	now := time.Now().UTC()
	a.Status = StatusCompleted
	a.ExecutionPayload = executionPayload
	a.Outcome = outcome
	a.CompletedAt = &now
	return nil
}

// FailExecution moves Executing -> Failed. The failure outcome is stored,
// never dropped.
func (a *ActionRecord) FailExecution(executionPayload, outcome string) error {
	if err := a.guard("fail_execution", a.Status, StatusExecuting); err != nil {
		return err
	}
	now := time.Now().UTC()
	a.Status = StatusFailed
	a.ExecutionPayload = executionPayload
	a.Outcome = outcome
	a.CompletedAt = &now
	return nil
}

// RequestRollback moves RollbackStatus Available -> Pending. Requires the
// forward lifecycle to be settled (Completed or Failed).
func (a *ActionRecord) RequestRollback() error {
	if err := a.guard("request_rollback", a.Status, StatusCompleted, StatusFailed); err != nil {
		return err
	}
	if err := a.guard("request_rollback", a.RollbackStatus, RollbackAvailable); err != nil {
		return err
	}
	a.RollbackStatus = RollbackPending
	return nil
}

// ApproveRollback moves RollbackStatus Pending -> Approved.
func (a *ActionRecord) ApproveRollback() error {
	if err := a.guard("approve_rollback", a.RollbackStatus, RollbackPending); err != nil {
		return err
	}
	a.RollbackStatus = RollbackApproved
	return nil
}

// RejectRollback withdraws a pending rollback request, returning the
// rollback axis to Available so it can be requested again.
func (a *ActionRecord) RejectRollback() error {
	if err := a.guard("reject_rollback", a.RollbackStatus, RollbackPending); err != nil {
		return err
	}
	a.RollbackStatus = RollbackAvailable
	return nil
}

// CompleteRollback moves RollbackStatus Approved -> RolledBack and stores
// the rollback outcome.
func (a *ActionRecord) CompleteRollback(outcome string) error {
	if err := a.guard("complete_rollback", a.RollbackStatus, RollbackApproved); err != nil {
		return err
	}
	now := time.Now().UTC()
	a.RollbackStatus = RollbackRolledBack
	a.RollbackOutcome = outcome
	a.RolledBackAt = &now
	return nil
}

// FailRollback moves RollbackStatus Approved -> RollbackFailed.
func (a *ActionRecord) FailRollback(outcome string) error {
	if err := a.guard("fail_rollback", a.RollbackStatus, RollbackApproved); err != nil {
		return err
	}
	now := time.Now().UTC()
	a.RollbackStatus = RollbackFailed
	a.RollbackOutcome = outcome
	a.RolledBackAt = &now
	return nil
}
