package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"remediation-service/internal/domain"
	"remediation-service/internal/executor"
	"remediation-service/internal/metrics"
	"remediation-service/internal/policy"

	log "github.com/sirupsen/logrus"
)

// ActionRepository is the persistence port consumed by the coordinator.
// Create and Append methods are pure inserts; Save persists only the
// mutable fields of a loaded record under its optimistic version.
type ActionRepository interface {
	Create(ctx context.Context, record *domain.ActionRecord) error
	GetByID(ctx context.Context, id string) (*domain.ActionRecord, error)
	Save(ctx context.Context, record *domain.ActionRecord) error
	AppendApproval(ctx context.Context, approval *domain.ApprovalRecord) error
	AppendExecutionLog(ctx context.Context, entry *domain.ExecutionLog) error
	List(ctx context.Context, filter domain.ActionFilter) ([]domain.ActionRecord, error)
	ListApprovals(ctx context.Context, actionRecordID string) ([]domain.ApprovalRecord, error)
	ListExecutionLogs(ctx context.Context, actionRecordID string) ([]domain.ExecutionLog, error)
	AuditSummaries(ctx context.Context, actionRecordIDs []string) (map[string]domain.AuditSummary, error)
}

// GateDenial is a structured, machine-readable policy outcome. It is not an
// error: the request was understood and refused.
type GateDenial struct {
	Gate              string `json:"gate"`
	ReasonCode        string `json:"reason_code"`
	Message           string `json:"message"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
}

type ProposeRequest struct {
	TenantID               string
	RunID                  string
	ActionType             string
	ProposedPayload        string
	RollbackPayload        string
	ManualRollbackGuidance string
}

// ActionDetail is the full read model for one action: the record, its
// approval ledger, its execution ledger with payloads redacted for display,
// and the derived audit summary.
type ActionDetail struct {
	Record        *domain.ActionRecord    `json:"record"`
	Approvals     []domain.ApprovalRecord `json:"approvals"`
	ExecutionLogs []domain.ExecutionLog   `json:"execution_logs"`
	AuditSummary  domain.AuditSummary     `json:"audit_summary"`
}

type Lifecycle interface {
	Propose(ctx context.Context, req ProposeRequest) (*domain.ActionRecord, *GateDenial, error)
	Approve(ctx context.Context, id, approverID, reason string) (*domain.ActionRecord, error)
	Reject(ctx context.Context, id, approverID, reason string) (*domain.ActionRecord, error)
	Execute(ctx context.Context, id string) (*domain.ActionRecord, *GateDenial, error)
	RequestRollback(ctx context.Context, id, actorID string) (*domain.ActionRecord, error)
	ApproveRollback(ctx context.Context, id, approverID, reason string) (*domain.ActionRecord, error)
	RejectRollback(ctx context.Context, id, approverID, reason string) (*domain.ActionRecord, error)
	ExecuteRollback(ctx context.Context, id string) (*domain.ActionRecord, *GateDenial, error)
	Get(ctx context.Context, id string) (*domain.ActionRecord, error)
	List(ctx context.Context, filter domain.ActionFilter) ([]domain.ActionRecord, error)
	Detail(ctx context.Context, id string) (*ActionDetail, error)
}

// LifecycleService coordinates the action lifecycle: it is the only
// component that creates action records and appends ledger rows. Gate
// evaluation order is fixed: proposal gate before persistence; throttle
// before tenant authorization before MarkExecuting, for both execution and
// rollback.
type LifecycleService struct {
	repo          ActionRepository
	catalog       *domain.ActionTypeCatalog
	proposalGate  policy.ProposalGate
	executionGate policy.ExecutionGate
	throttle      policy.ThrottleGate
	executor      executor.Executor
	audit         *AuditService
	metrics       *metrics.Recorder
}

func NewLifecycleService(
	repo ActionRepository,
	catalog *domain.ActionTypeCatalog,
	proposalGate policy.ProposalGate,
	executionGate policy.ExecutionGate,
	throttle policy.ThrottleGate,
	exec executor.Executor,
	audit *AuditService,
	recorder *metrics.Recorder,
) *LifecycleService {
	return &LifecycleService{
		repo:          repo,
		catalog:       catalog,
		proposalGate:  proposalGate,
		executionGate: executionGate,
		throttle:      throttle,
		executor:      exec,
		audit:         audit,
		metrics:       recorder,
	}
}

// Propose runs the proposal-time gates and, only if both allow, persists a
// new record in Proposed state. A denial here leaves zero side effects: no
// row, no ledger entry.
func (s *LifecycleService) Propose(ctx context.Context, req ProposeRequest) (*domain.ActionRecord, *GateDenial, error) {
	if req.TenantID == "" || req.RunID == "" || req.ActionType == "" {
		return nil, nil, fmt.Errorf("tenant ID, run ID and action type are required")
	}

	if !s.catalog.IsAllowlisted(req.ActionType) {
		s.metrics.PolicyDenial("catalog")
		return nil, &GateDenial{
			Gate:       "catalog",
			ReasonCode: policy.ReasonActionTypeNotAllowed,
			Message:    "action type is not allowlisted in the catalog",
		}, nil
	}

	if decision := s.proposalGate.Evaluate(req.TenantID, req.ActionType); !decision.Allowed {
		s.metrics.PolicyDenial("proposal")
		return nil, &GateDenial{
			Gate:       "proposal",
			ReasonCode: decision.ReasonCode,
			Message:    decision.Message,
		}, nil
	}

	record := domain.NewActionRecord(
		req.TenantID, req.RunID, req.ActionType,
		req.ProposedPayload, req.RollbackPayload, req.ManualRollbackGuidance,
	)

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, nil, fmt.Errorf("failed to create action record: %w", err)
	}

	fields := log.Fields{
		"action_id":       record.ID,
		"tenant_id":       record.TenantID,
		"run_id":          record.RunID,
		"action_type":     record.ActionType,
		"rollback_status": record.RollbackStatus,
	}
	if def, ok := s.catalog.Definition(req.ActionType); ok {
		fields["risk_tier"] = def.RiskTier
	}
	log.WithFields(fields).Info("Action proposed")

	s.audit.RecordLifecycleEvent(ctx, domain.EventActionProposed, "", record)
	return record, nil, nil
}

func (s *LifecycleService) Approve(ctx context.Context, id, approverID, reason string) (*domain.ActionRecord, error) {
	return s.decide(ctx, id, approverID, reason, domain.DecisionApproved, domain.ApprovalTargetAction)
}

func (s *LifecycleService) Reject(ctx context.Context, id, approverID, reason string) (*domain.ActionRecord, error) {
	return s.decide(ctx, id, approverID, reason, domain.DecisionRejected, domain.ApprovalTargetAction)
}

func (s *LifecycleService) ApproveRollback(ctx context.Context, id, approverID, reason string) (*domain.ActionRecord, error) {
	return s.decide(ctx, id, approverID, reason, domain.DecisionApproved, domain.ApprovalTargetRollback)
}

func (s *LifecycleService) RejectRollback(ctx context.Context, id, approverID, reason string) (*domain.ActionRecord, error) {
	return s.decide(ctx, id, approverID, reason, domain.DecisionRejected, domain.ApprovalTargetRollback)
}

// decide applies an approve/reject transition, saves the record and appends
// exactly one approval ledger row.
func (s *LifecycleService) decide(ctx context.Context, id, approverID, reason, decision, target string) (*domain.ActionRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var transition func() error
	var eventType string
	switch {
	case target == domain.ApprovalTargetAction && decision == domain.DecisionApproved:
		transition, eventType = record.Approve, domain.EventActionApproved
	case target == domain.ApprovalTargetAction && decision == domain.DecisionRejected:
		transition, eventType = record.Reject, domain.EventActionRejected
	case target == domain.ApprovalTargetRollback && decision == domain.DecisionApproved:
		transition, eventType = record.ApproveRollback, domain.EventRollbackApproved
	default:
		transition, eventType = record.RejectRollback, domain.EventRollbackRejected
	}

	if err := transition(); err != nil {
		s.noteConflict(record.ID, err)
		return nil, err
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	if err := s.repo.AppendApproval(ctx, domain.NewApprovalRecord(record.ID, approverID, decision, target, reason)); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"action_id": record.ID,
		"approver":  approverID,
		"decision":  decision,
		"target":    target,
	}).Info("Approval decision recorded")

	s.metrics.ApprovalDecision(decision, target)
	s.audit.RecordLifecycleEvent(ctx, eventType, approverID, record)
	return record, nil
}

// Execute drives an approved action through the executor. Gate order:
// throttle, then tenant authorization, then MarkExecuting. Exactly one
// execution log row is appended per attempt, success or failure.
//
// Known gap: a cancelled or crashed call after MarkExecuting leaves the
// record in Executing with no automatic recovery; reconciling orphaned
// in-flight records is outside this service.
func (s *LifecycleService) Execute(ctx context.Context, id string) (*domain.ActionRecord, *GateDenial, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if denial := s.executionGates(record, policy.OperationExecute); denial != nil {
		return nil, denial, nil
	}

	if err := record.MarkExecuting(); err != nil {
		s.noteConflict(record.ID, err)
		return nil, nil, err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, nil, err
	}

	result := s.run(ctx, policy.OperationExecute, record.ActionType, record.ProposedPayload)

	entry := domain.NewExecutionLog(
		record.ID, domain.ExecutionTypeExecute,
		record.ProposedPayload, result.ResponseJSON,
		executionStatus(result.Success), result.Duration,
	)
	if err := s.repo.AppendExecutionLog(ctx, entry); err != nil {
		return nil, nil, err
	}

	if result.Success {
		err = record.CompleteExecution(record.ProposedPayload, result.ResponseJSON)
		s.metrics.ExecutionAttempt("execute", "success")
	} else {
		err = record.FailExecution(record.ProposedPayload, result.ResponseJSON)
		s.metrics.ExecutionAttempt("execute", "failure")
	}
	if err != nil {
		s.noteConflict(record.ID, err)
		return nil, nil, err
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"action_id":   record.ID,
		"action_type": record.ActionType,
		"status":      record.Status,
		"duration_ms": result.Duration.Milliseconds(),
	}).Info("Action executed")

	s.audit.RecordLifecycleEvent(ctx, domain.EventActionExecuted, "", record)
	return record, nil, nil
}

func (s *LifecycleService) RequestRollback(ctx context.Context, id, actorID string) (*domain.ActionRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := record.RequestRollback(); err != nil {
		s.noteConflict(record.ID, err)
		return nil, err
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"action_id": record.ID,
		"actor":     actorID,
	}).Info("Rollback requested")

	s.audit.RecordLifecycleEvent(ctx, domain.EventRollbackRequested, actorID, record)
	return record, nil
}

// ExecuteRollback mirrors Execute for the rollback axis. The rollback stays
// in Approved while the executor runs; a cancelled in-flight call leaves it
// there (same gap as Execute).
func (s *LifecycleService) ExecuteRollback(ctx context.Context, id string) (*domain.ActionRecord, *GateDenial, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if record.RollbackStatus != domain.RollbackApproved {
		err := &domain.InvalidTransitionError{
			Attempted: "execute_rollback",
			From:      record.RollbackStatus,
			Required:  []string{domain.RollbackApproved},
		}
		s.noteConflict(record.ID, err)
		return nil, nil, err
	}

	if denial := s.executionGates(record, policy.OperationRollback); denial != nil {
		return nil, denial, nil
	}

	result := s.run(ctx, policy.OperationRollback, record.ActionType, record.RollbackPayload)

	entry := domain.NewExecutionLog(
		record.ID, domain.ExecutionTypeRollback,
		record.RollbackPayload, result.ResponseJSON,
		executionStatus(result.Success), result.Duration,
	)
	if err := s.repo.AppendExecutionLog(ctx, entry); err != nil {
		return nil, nil, err
	}

	if result.Success {
		err = record.CompleteRollback(result.ResponseJSON)
		s.metrics.ExecutionAttempt("rollback", "success")
	} else {
		err = record.FailRollback(result.ResponseJSON)
		s.metrics.ExecutionAttempt("rollback", "failure")
	}
	if err != nil {
		s.noteConflict(record.ID, err)
		return nil, nil, err
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"action_id":       record.ID,
		"action_type":     record.ActionType,
		"rollback_status": record.RollbackStatus,
		"duration_ms":     result.Duration.Milliseconds(),
	}).Info("Rollback executed")

	s.audit.RecordLifecycleEvent(ctx, domain.EventRollbackExecuted, "", record)
	return record, nil, nil
}

func (s *LifecycleService) Get(ctx context.Context, id string) (*domain.ActionRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("action ID is required")
	}
	s.metrics.Query()
	return s.repo.GetByID(ctx, id)
}

func (s *LifecycleService) List(ctx context.Context, filter domain.ActionFilter) ([]domain.ActionRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	s.metrics.Query()
	return s.repo.List(ctx, filter)
}

// Detail assembles the full read model. Execution payloads go through the
// redactor before leaving the service.
func (s *LifecycleService) Detail(ctx context.Context, id string) (*ActionDetail, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	approvals, err := s.repo.ListApprovals(ctx, id)
	if err != nil {
		return nil, err
	}

	logs, err := s.repo.ListExecutionLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range logs {
		logs[i].RequestPayload = RedactPayload(logs[i].RequestPayload)
		logs[i].ResponsePayload = RedactPayload(logs[i].ResponsePayload)
	}

	summaries, err := s.repo.AuditSummaries(ctx, []string{id})
	if err != nil {
		return nil, err
	}

	s.metrics.Query()
	return &ActionDetail{
		Record:        record,
		Approvals:     approvals,
		ExecutionLogs: logs,
		AuditSummary:  summaries[id],
	}, nil
}

// executionGates runs the fixed-order execution gates: throttle first, then
// tenant authorization.
func (s *LifecycleService) executionGates(record *domain.ActionRecord, op policy.OperationKind) *GateDenial {
	throttle := s.throttle.Evaluate(record.TenantID, record.ActionType, op)
	if !throttle.Allowed {
		s.metrics.ThrottleDenial()
		return &GateDenial{
			Gate:              "throttle",
			ReasonCode:        throttle.ReasonCode,
			Message:           throttle.Message,
			RetryAfterSeconds: throttle.RetryAfterSeconds,
		}
	}

	if decision := s.executionGate.EvaluateExecution(record.TenantID, record.ActionType); !decision.Allowed {
		s.metrics.PolicyDenial("tenant_execution")
		return &GateDenial{
			Gate:       "tenant_execution",
			ReasonCode: decision.ReasonCode,
			Message:    decision.Message,
		}
	}

	return nil
}

// run invokes the executor, measuring duration when the implementation does
// not report one and folding transport errors into a failed result so the
// attempt is always recorded.
func (s *LifecycleService) run(ctx context.Context, op policy.OperationKind, actionType, payload string) executor.Result {
	start := time.Now()

	var result executor.Result
	var err error
	if op == policy.OperationRollback {
		result, err = s.executor.Rollback(ctx, actionType, payload)
	} else {
		result, err = s.executor.Execute(ctx, actionType, payload)
	}

	if err != nil {
		log.WithError(err).WithField("action_type", actionType).Error("Executor call failed")
		result = executor.Result{
			Success:      false,
			ResponseJSON: fmt.Sprintf(`{"error":%q}`, err.Error()),
		}
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

func (s *LifecycleService) noteConflict(actionID string, err error) {
	var invalid *domain.InvalidTransitionError
	if errors.As(err, &invalid) {
		s.metrics.TransitionConflict()
		log.WithFields(log.Fields{
			"action_id": actionID,
			"attempted": invalid.Attempted,
			"from":      invalid.From,
		}).Warn("Invalid lifecycle transition attempted")
	}
}

func executionStatus(success bool) string {
	if success {
		return domain.ExecutionStatusSuccess
	}
	return domain.ExecutionStatusFailed
}
