package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"remediation-service/internal/domain"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const queryTimeout = 5 * time.Second

type postgresActionRepository struct {
	db *sql.DB
}

func NewPostgresActionRepository(db *sql.DB) *postgresActionRepository {
	return &postgresActionRepository{db: db}
}

const actionColumns = `id, tenant_id, run_id, action_type, proposed_payload,
			status, rollback_status,
			execution_payload, outcome,
			rollback_payload, rollback_outcome, manual_rollback_guidance,
			version, created_at, updated_at, executed_at, completed_at, rolled_back_at`

func (r *postgresActionRepository) Create(ctx context.Context, record *domain.ActionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"action_id":   record.ID,
		"tenant_id":   record.TenantID,
		"run_id":      record.RunID,
		"action_type": record.ActionType,
	}).Info("Creating action record in database")

	query := `
		INSERT INTO action_records (
			id, tenant_id, run_id, action_type, proposed_payload,
			status, rollback_status,
			rollback_payload, manual_rollback_guidance,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.TenantID,
		record.RunID,
		record.ActionType,
		nullString(record.ProposedPayload),
		record.Status,
		record.RollbackStatus,
		nullString(record.RollbackPayload),
		nullString(record.ManualRollbackGuidance),
		record.Version,
		record.CreatedAt,
		record.UpdatedAt,
	)

	if err != nil {
		log.WithError(err).WithField("action_id", record.ID).Error("Failed to create action record")
		return fmt.Errorf("failed to create action record: %w", err)
	}

	return nil
}

func (r *postgresActionRepository) GetByID(ctx context.Context, id string) (*domain.ActionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + actionColumns + ` FROM action_records WHERE id = $1`

	record, err := scanActionRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrActionNotFound
		}
		log.WithError(err).WithField("action_id", id).Error("Failed to get action record by ID")
		return nil, fmt.Errorf("failed to get action record by ID: %w", err)
	}

	return record, nil
}

// Save persists the mutable fields of a loaded record, guarded by the
// optimistic version column. A concurrent writer bumping the version first
// makes this update touch zero rows, which is surfaced as
// domain.ErrVersionConflict rather than silently overwriting.
func (r *postgresActionRepository) Save(ctx context.Context, record *domain.ActionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE action_records SET
			status = $1,
			rollback_status = $2,
			execution_payload = $3,
			outcome = $4,
			rollback_outcome = $5,
			executed_at = $6,
			completed_at = $7,
			rolled_back_at = $8,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $9
		  AND version = $10
	`

	result, err := r.db.ExecContext(ctx, query,
		record.Status,
		record.RollbackStatus,
		nullString(record.ExecutionPayload),
		nullString(record.Outcome),
		nullString(record.RollbackOutcome),
		record.ExecutedAt,
		record.CompletedAt,
		record.RolledBackAt,
		record.ID,
		record.Version,
	)
	if err != nil {
		log.WithError(err).WithField("action_id", record.ID).Error("Failed to save action record")
		return fmt.Errorf("failed to save action record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not determine rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, record.ID); err != nil {
			return domain.ErrActionNotFound
		}
		log.WithFields(log.Fields{
			"action_id": record.ID,
			"version":   record.Version,
		}).Warn("Action record version conflict")
		return domain.ErrVersionConflict
	}

	record.Version++
	return nil
}

func (r *postgresActionRepository) AppendApproval(ctx context.Context, approval *domain.ApprovalRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO approval_records (id, action_record_id, approver_id, decision, reason, target, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		approval.ID,
		approval.ActionRecordID,
		approval.ApproverID,
		approval.Decision,
		nullString(approval.Reason),
		approval.Target,
		approval.CreatedAt,
	)
	if err != nil {
		log.WithError(err).WithField("action_id", approval.ActionRecordID).Error("Failed to append approval record")
		return fmt.Errorf("failed to append approval record: %w", err)
	}

	return nil
}

func (r *postgresActionRepository) AppendExecutionLog(ctx context.Context, entry *domain.ExecutionLog) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO execution_logs (id, action_record_id, execution_type, request_payload, response_payload, status, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActionRecordID,
		entry.ExecutionType,
		nullString(entry.RequestPayload),
		nullString(entry.ResponsePayload),
		entry.Status,
		entry.DurationMs,
		entry.CreatedAt,
	)
	if err != nil {
		log.WithError(err).WithField("action_id", entry.ActionRecordID).Error("Failed to append execution log")
		return fmt.Errorf("failed to append execution log: %w", err)
	}

	return nil
}

func (r *postgresActionRepository) List(ctx context.Context, filter domain.ActionFilter) ([]domain.ActionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var query strings.Builder
	args := []interface{}{}
	argPos := 1

	query.WriteString(`SELECT ` + actionColumns + ` FROM action_records WHERE 1=1`)

	if filter.TenantID != "" {
		query.WriteString(fmt.Sprintf(" AND tenant_id = $%d", argPos))
		args = append(args, filter.TenantID)
		argPos++
	}

	if filter.RunID != "" {
		query.WriteString(fmt.Sprintf(" AND run_id = $%d", argPos))
		args = append(args, filter.RunID)
		argPos++
	}

	if filter.Status != "" {
		query.WriteString(fmt.Sprintf(" AND status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}

	query.WriteString(" ORDER BY created_at DESC")
	query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1))
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		log.WithError(err).Error("Failed to list action records")
		return nil, fmt.Errorf("failed to list action records: %w", err)
	}
	defer rows.Close()

	var records []domain.ActionRecord
	for rows.Next() {
		record, err := scanActionRecord(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan action record row")
			return nil, fmt.Errorf("failed to scan action record row: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

func (r *postgresActionRepository) ListApprovals(ctx context.Context, actionRecordID string) ([]domain.ApprovalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, action_record_id, approver_id, decision, reason, target, created_at
		FROM approval_records
		WHERE action_record_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, actionRecordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval records: %w", err)
	}
	defer rows.Close()

	var approvals []domain.ApprovalRecord
	for rows.Next() {
		var a domain.ApprovalRecord
		var reason sql.NullString
		if err := rows.Scan(&a.ID, &a.ActionRecordID, &a.ApproverID, &a.Decision, &reason, &a.Target, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval record row: %w", err)
		}
		if reason.Valid {
			a.Reason = reason.String
		}
		approvals = append(approvals, a)
	}

	return approvals, rows.Err()
}

func (r *postgresActionRepository) ListExecutionLogs(ctx context.Context, actionRecordID string) ([]domain.ExecutionLog, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, action_record_id, execution_type, request_payload, response_payload, status, duration_ms, created_at
		FROM execution_logs
		WHERE action_record_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, actionRecordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ExecutionLog
	for rows.Next() {
		var l domain.ExecutionLog
		var request, response sql.NullString
		if err := rows.Scan(&l.ID, &l.ActionRecordID, &l.ExecutionType, &request, &response, &l.Status, &l.DurationMs, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution log row: %w", err)
		}
		if request.Valid {
			l.RequestPayload = request.String
		}
		if response.Valid {
			l.ResponsePayload = response.String
		}
		logs = append(logs, l)
	}

	return logs, rows.Err()
}

// AuditSummaries computes the read-time ledger aggregation for a batch of
// action IDs. Four queries, no writes, nothing cached.
func (r *postgresActionRepository) AuditSummaries(ctx context.Context, actionRecordIDs []string) (map[string]domain.AuditSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	summaries := make(map[string]domain.AuditSummary, len(actionRecordIDs))
	if len(actionRecordIDs) == 0 {
		return summaries, nil
	}
	for _, id := range actionRecordIDs {
		summaries[id] = domain.AuditSummary{ActionRecordID: id}
	}

	execCounts := `
		SELECT action_record_id, COUNT(*)
		FROM execution_logs
		WHERE action_record_id = ANY($1)
		GROUP BY action_record_id
	`
	if err := r.scanCounts(ctx, execCounts, actionRecordIDs, summaries, func(s *domain.AuditSummary, n int) {
		s.ExecutionCount = n
	}); err != nil {
		return nil, err
	}

	approvalCounts := `
		SELECT action_record_id, COUNT(*)
		FROM approval_records
		WHERE action_record_id = ANY($1)
		GROUP BY action_record_id
	`
	if err := r.scanCounts(ctx, approvalCounts, actionRecordIDs, summaries, func(s *domain.AuditSummary, n int) {
		s.ApprovalCount = n
	}); err != nil {
		return nil, err
	}

	lastExecutions := `
		SELECT DISTINCT ON (action_record_id) action_record_id, status, created_at
		FROM execution_logs
		WHERE action_record_id = ANY($1)
		ORDER BY action_record_id, created_at DESC
	`
	if err := r.scanLastEvents(ctx, lastExecutions, actionRecordIDs, summaries, func(s *domain.AuditSummary, status string, at time.Time) {
		s.LastExecutionStatus = status
		s.LastExecutionAt = &at
	}); err != nil {
		return nil, err
	}

	lastDecisions := `
		SELECT DISTINCT ON (action_record_id) action_record_id, decision, created_at
		FROM approval_records
		WHERE action_record_id = ANY($1)
		ORDER BY action_record_id, created_at DESC
	`
	if err := r.scanLastEvents(ctx, lastDecisions, actionRecordIDs, summaries, func(s *domain.AuditSummary, decision string, at time.Time) {
		s.LastDecision = decision
		s.LastDecisionAt = &at
	}); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (r *postgresActionRepository) scanCounts(ctx context.Context, query string, ids []string, summaries map[string]domain.AuditSummary, apply func(*domain.AuditSummary, int)) error {
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query audit counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return fmt.Errorf("failed to scan audit count row: %w", err)
		}
		s := summaries[id]
		apply(&s, count)
		summaries[id] = s
	}
	return rows.Err()
}

func (r *postgresActionRepository) scanLastEvents(ctx context.Context, query string, ids []string, summaries map[string]domain.AuditSummary, apply func(*domain.AuditSummary, string, time.Time)) error {
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query last audit events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, value string
		var at time.Time
		if err := rows.Scan(&id, &value, &at); err != nil {
			return fmt.Errorf("failed to scan last audit event row: %w", err)
		}
		s := summaries[id]
		apply(&s, value, at)
		summaries[id] = s
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActionRecord(row rowScanner) (*domain.ActionRecord, error) {
	var record domain.ActionRecord
	var proposedPayload, executionPayload, outcome, rollbackPayload, rollbackOutcome, manualGuidance sql.NullString
	var executedAt, completedAt, rolledBackAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.TenantID,
		&record.RunID,
		&record.ActionType,
		&proposedPayload,
		&record.Status,
		&record.RollbackStatus,
		&executionPayload,
		&outcome,
		&rollbackPayload,
		&rollbackOutcome,
		&manualGuidance,
		&record.Version,
		&record.CreatedAt,
		&record.UpdatedAt,
		&executedAt,
		&completedAt,
		&rolledBackAt,
	)
	if err != nil {
		return nil, err
	}

	if proposedPayload.Valid {
		record.ProposedPayload = proposedPayload.String
	}
	if executionPayload.Valid {
		record.ExecutionPayload = executionPayload.String
	}
	if outcome.Valid {
		record.Outcome = outcome.String
	}
	if rollbackPayload.Valid {
		record.RollbackPayload = rollbackPayload.String
	}
	if rollbackOutcome.Valid {
		record.RollbackOutcome = rollbackOutcome.String
	}
	if manualGuidance.Valid {
		record.ManualRollbackGuidance = manualGuidance.String
	}
	if executedAt.Valid {
		record.ExecutedAt = &executedAt.Time
	}
	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}
	if rolledBackAt.Valid {
		record.RolledBackAt = &rolledBackAt.Time
	}

	return &record, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
