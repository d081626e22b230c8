package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"remediation-service/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*postgresActionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresActionRepository(db), mock
}

func actionRows(record *domain.ActionRecord) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "run_id", "action_type", "proposed_payload",
		"status", "rollback_status",
		"execution_payload", "outcome",
		"rollback_payload", "rollback_outcome", "manual_rollback_guidance",
		"version", "created_at", "updated_at", "executed_at", "completed_at", "rolled_back_at",
	}).AddRow(
		record.ID, record.TenantID, record.RunID, record.ActionType, record.ProposedPayload,
		record.Status, record.RollbackStatus,
		nil, nil,
		nullString(record.RollbackPayload), nil, nil,
		record.Version, record.CreatedAt, record.UpdatedAt, nil, nil, nil,
	)
}

func TestCreateActionRecord(t *testing.T) {
	repo, mock := newMockRepo(t)
	record := domain.NewActionRecord("tenant-a", "run-1", "restart_pod", `{"pod":"api-0"}`, "", "")

	mock.ExpectExec(`INSERT INTO action_records`).
		WithArgs(
			record.ID, record.TenantID, record.RunID, record.ActionType,
			record.ProposedPayload, record.Status, record.RollbackStatus,
			nil, nil,
			record.Version, record.CreatedAt, record.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	record := domain.NewActionRecord("tenant-a", "run-1", "restart_pod", `{"pod":"api-0"}`, `{"undo":true}`, "")

	mock.ExpectQuery(`SELECT (.+) FROM action_records WHERE id = \$1`).
		WithArgs(record.ID).
		WillReturnRows(actionRows(record))

	got, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, domain.StatusProposed, got.Status)
	assert.Equal(t, domain.RollbackAvailable, got.RollbackStatus)
	assert.Equal(t, `{"undo":true}`, got.RollbackPayload)
	assert.Nil(t, got.ExecutedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM action_records WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
}

func TestSaveBumpsVersion(t *testing.T) {
	repo, mock := newMockRepo(t)
	record := domain.NewActionRecord("tenant-a", "run-1", "restart_pod", "{}", "", "")
	require.NoError(t, record.Approve())

	mock.ExpectExec(`UPDATE action_records SET`).
		WithArgs(
			record.Status, record.RollbackStatus,
			nil, nil, nil,
			record.ExecutedAt, record.CompletedAt, record.RolledBackAt,
			record.ID, record.Version,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), record))
	assert.Equal(t, int64(2), record.Version, "in-memory version follows the row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveVersionConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	record := domain.NewActionRecord("tenant-a", "run-1", "restart_pod", "{}", "", "")
	require.NoError(t, record.Approve())

	// The guarded update touches zero rows because another writer bumped
	// the version; the follow-up existence check finds the row.
	mock.ExpectExec(`UPDATE action_records SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM action_records WHERE id = \$1`).
		WithArgs(record.ID).
		WillReturnRows(actionRows(record))

	err := repo.Save(context.Background(), record)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, int64(1), record.Version, "a conflicting save must not bump the in-memory version")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMissingRecord(t *testing.T) {
	repo, mock := newMockRepo(t)
	record := domain.NewActionRecord("tenant-a", "run-1", "restart_pod", "{}", "", "")

	mock.ExpectExec(`UPDATE action_records SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM action_records WHERE id = \$1`).
		WithArgs(record.ID).
		WillReturnError(sql.ErrNoRows)

	err := repo.Save(context.Background(), record)
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
}

func TestAppendApproval(t *testing.T) {
	repo, mock := newMockRepo(t)
	approval := domain.NewApprovalRecord("action-1", "alice", domain.DecisionApproved, domain.ApprovalTargetAction, "ok")

	mock.ExpectExec(`INSERT INTO approval_records`).
		WithArgs(
			approval.ID, approval.ActionRecordID, approval.ApproverID,
			approval.Decision, approval.Reason, approval.Target, approval.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AppendApproval(context.Background(), approval))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendExecutionLog(t *testing.T) {
	repo, mock := newMockRepo(t)
	entry := domain.NewExecutionLog("action-1", domain.ExecutionTypeExecute, `{"pod":"api-0"}`, `{"ok":true}`, domain.ExecutionStatusSuccess, 125*time.Millisecond)

	mock.ExpectExec(`INSERT INTO execution_logs`).
		WithArgs(
			entry.ID, entry.ActionRecordID, entry.ExecutionType,
			entry.RequestPayload, entry.ResponsePayload, entry.Status,
			entry.DurationMs, entry.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AppendExecutionLog(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppliesFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	record := domain.NewActionRecord("tenant-a", "run-1", "restart_pod", "{}", "", "")

	mock.ExpectQuery(`SELECT (.+) FROM action_records WHERE 1=1 AND tenant_id = \$1 AND status = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("tenant-a", domain.StatusProposed, 20, 0).
		WillReturnRows(actionRows(record))

	records, err := repo.List(context.Background(), domain.ActionFilter{
		TenantID: "tenant-a",
		Status:   domain.StatusProposed,
		Limit:    20,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditSummaries(t *testing.T) {
	repo, mock := newMockRepo(t)
	ids := []string{"action-1", "action-2"}
	executedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	decidedAt := executedAt.Add(-time.Minute)

	mock.ExpectQuery(`SELECT action_record_id, COUNT\(\*\) FROM execution_logs`).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"action_record_id", "count"}).AddRow("action-1", 2))
	mock.ExpectQuery(`SELECT action_record_id, COUNT\(\*\) FROM approval_records`).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"action_record_id", "count"}).AddRow("action-1", 1))
	mock.ExpectQuery(`SELECT DISTINCT ON \(action_record_id\) action_record_id, status, created_at FROM execution_logs`).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"action_record_id", "status", "created_at"}).AddRow("action-1", domain.ExecutionStatusSuccess, executedAt))
	mock.ExpectQuery(`SELECT DISTINCT ON \(action_record_id\) action_record_id, decision, created_at FROM approval_records`).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"action_record_id", "decision", "created_at"}).AddRow("action-1", domain.DecisionApproved, decidedAt))

	summaries, err := repo.AuditSummaries(context.Background(), ids)
	require.NoError(t, err)

	active := summaries["action-1"]
	assert.Equal(t, 2, active.ExecutionCount)
	assert.Equal(t, 1, active.ApprovalCount)
	assert.Equal(t, domain.ExecutionStatusSuccess, active.LastExecutionStatus)
	require.NotNil(t, active.LastExecutionAt)
	assert.Equal(t, executedAt, *active.LastExecutionAt)
	assert.Equal(t, domain.DecisionApproved, active.LastDecision)

	// An ID with no ledger rows still gets a zero-valued summary.
	idle := summaries["action-2"]
	assert.Zero(t, idle.ExecutionCount)
	assert.Zero(t, idle.ApprovalCount)
	assert.Empty(t, idle.LastExecutionStatus)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditSummariesEmptyInput(t *testing.T) {
	repo, _ := newMockRepo(t)

	summaries, err := repo.AuditSummaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
