package policy

// Reason codes carried by decisions. Machine-readable; the message is for
// humans.
const (
	ReasonToolDenied           = "TOOL_DENIED"
	ReasonActionTypeNotAllowed = "action_type_not_allowed"
	ReasonTenantNotAuthorized  = "tenant_not_authorized_for_action"
	ReasonRateLimited          = "execution_rate_limited"
)

// Decision is the outcome of a policy gate. Gates never signal denial via
// errors; evaluation is a pure function from inputs to a Decision.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	ReasonCode string `json:"reason_code,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reasonCode, message string) Decision {
	return Decision{Allowed: false, ReasonCode: reasonCode, Message: message}
}

// ThrottleDecision is a Decision with retry guidance. A throttle denial is
// never fatal; the caller should retry after RetryAfterSeconds.
type ThrottleDecision struct {
	Allowed           bool   `json:"allowed"`
	ReasonCode        string `json:"reason_code,omitempty"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
}

// ProposalGate is evaluated strictly before an action record is persisted.
// A deny here must leave zero side effects.
type ProposalGate interface {
	Evaluate(tenantID, actionType string) Decision
}

// ExecutionGate authorizes a tenant to execute (or roll back) an action type.
type ExecutionGate interface {
	EvaluateExecution(tenantID, actionType string) Decision
}

// OperationKind distinguishes forward execution from rollback execution in
// the throttle key.
type OperationKind string

const (
	OperationExecute  OperationKind = "execute"
	OperationRollback OperationKind = "rollback"
)

// ThrottleGate rate-limits execution attempts per (tenant, action type,
// operation) tuple.
type ThrottleGate interface {
	Evaluate(tenantID, actionType string, op OperationKind) ThrottleDecision
}
