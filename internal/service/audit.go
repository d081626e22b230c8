package service

import (
	"context"
	"time"

	"remediation-service/internal/domain"

	log "github.com/sirupsen/logrus"
)

type AuditPublisher interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}

// AuditService emits best-effort lifecycle events to the audit stream.
// Safe to use with a nil publisher (events are dropped) — the in-database
// ledger, not this stream, is the system of record.
type AuditService struct {
	publisher AuditPublisher
}

func NewAuditService(publisher AuditPublisher) *AuditService {
	return &AuditService{publisher: publisher}
}

func (s *AuditService) RecordLifecycleEvent(ctx context.Context, eventType, actor string, record *domain.ActionRecord) {
	if s == nil || s.publisher == nil || record == nil {
		return
	}

	event := domain.AuditEvent{
		Service:    "remediation-service",
		EventType:  eventType,
		EntityID:   record.ID,
		TenantID:   record.TenantID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
		Payload: map[string]interface{}{
			"tenant_id":       record.TenantID,
			"run_id":          record.RunID,
			"action_type":     record.ActionType,
			"status":          record.Status,
			"rollback_status": record.RollbackStatus,
		},
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"action_id":  record.ID,
			"event_type": eventType,
		}).Warn("Failed to publish audit event")
	}
}
