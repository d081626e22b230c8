package domain

import (
	"time"

	"github.com/google/uuid"
)

// Approval decisions
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Approval targets
const (
	ApprovalTargetAction   = "action"
	ApprovalTargetRollback = "rollback"
)

// ApprovalRecord is a write-once ledger row for one approve/reject decision
// on an action or its rollback. Many approvals may attach to one action.
type ApprovalRecord struct {
	ID             string    `json:"id"`
	ActionRecordID string    `json:"action_record_id"`
	ApproverID     string    `json:"approver_id"`
	Decision       string    `json:"decision"`
	Reason         string    `json:"reason,omitempty"`
	Target         string    `json:"target"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewApprovalRecord(actionRecordID, approverID, decision, target, reason string) *ApprovalRecord {
	return &ApprovalRecord{
		ID:             uuid.NewString(),
		ActionRecordID: actionRecordID,
		ApproverID:     approverID,
		Decision:       decision,
		Reason:         reason,
		Target:         target,
		CreatedAt:      time.Now().UTC(),
	}
}
