package server

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"remediation-service/internal/domain"
	"remediation-service/internal/service"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"
)

type Server struct {
	lifecycle service.Lifecycle
	identity  *IdentityResolver
	db        *sql.DB
}

func NewServer(lifecycle service.Lifecycle, identity *IdentityResolver, db *sql.DB) *Server {
	return &Server{
		lifecycle: lifecycle,
		identity:  identity,
		db:        db,
	}
}

type ProposeActionRequest struct {
	TenantID               string `json:"tenant_id"`
	RunID                  string `json:"run_id"`
	ActionType             string `json:"action_type"`
	ProposedPayload        string `json:"proposed_payload"`
	RollbackPayload        string `json:"rollback_payload,omitempty"`
	ManualRollbackGuidance string `json:"manual_rollback_guidance,omitempty"`
}

type DecisionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) HealthCheck(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		log.WithField("error", err).Error("Health check failed: database is down")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database connection error",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) ProposeAction(c echo.Context) error {
	var req ProposeActionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	ctx := c.Request().Context()
	record, denial, err := s.lifecycle.Propose(ctx, service.ProposeRequest{
		TenantID:               req.TenantID,
		RunID:                  req.RunID,
		ActionType:             req.ActionType,
		ProposedPayload:        req.ProposedPayload,
		RollbackPayload:        req.RollbackPayload,
		ManualRollbackGuidance: req.ManualRollbackGuidance,
	})
	if denial != nil {
		return s.denialResponse(c, denial)
	}
	if err != nil {
		log.WithError(err).Error("Failed to propose action")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, record)
}

func (s *Server) GetAction(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "action ID is required",
		})
	}

	ctx := c.Request().Context()
	detail, err := s.lifecycle.Detail(ctx, id)
	if err != nil {
		return s.errorResponse(c, id, err)
	}

	return c.JSON(http.StatusOK, detail)
}

func (s *Server) ListActions(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	filter := domain.ActionFilter{
		TenantID: c.QueryParam("tenant_id"),
		RunID:    c.QueryParam("run_id"),
		Status:   c.QueryParam("status"),
		Limit:    limit,
		Offset:   offset,
	}

	ctx := c.Request().Context()
	records, err := s.lifecycle.List(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list actions")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"actions": records,
		"count":   len(records),
	})
}

func (s *Server) ApproveAction(c echo.Context) error {
	return s.decide(c, domain.DecisionApproved, domain.ApprovalTargetAction)
}

func (s *Server) RejectAction(c echo.Context) error {
	return s.decide(c, domain.DecisionRejected, domain.ApprovalTargetAction)
}

func (s *Server) ApproveRollback(c echo.Context) error {
	return s.decide(c, domain.DecisionApproved, domain.ApprovalTargetRollback)
}

func (s *Server) RejectRollback(c echo.Context) error {
	return s.decide(c, domain.DecisionRejected, domain.ApprovalTargetRollback)
}

func (s *Server) decide(c echo.Context, decision, target string) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "action ID is required",
		})
	}

	identity, ok := s.identity.Resolve(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "could not establish approver identity",
		})
	}

	var req DecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	ctx := c.Request().Context()
	var record *domain.ActionRecord
	var err error
	switch {
	case target == domain.ApprovalTargetAction && decision == domain.DecisionApproved:
		record, err = s.lifecycle.Approve(ctx, id, identity.ActorID, req.Reason)
	case target == domain.ApprovalTargetAction && decision == domain.DecisionRejected:
		record, err = s.lifecycle.Reject(ctx, id, identity.ActorID, req.Reason)
	case target == domain.ApprovalTargetRollback && decision == domain.DecisionApproved:
		record, err = s.lifecycle.ApproveRollback(ctx, id, identity.ActorID, req.Reason)
	default:
		record, err = s.lifecycle.RejectRollback(ctx, id, identity.ActorID, req.Reason)
	}
	if err != nil {
		return s.errorResponse(c, id, err)
	}

	return c.JSON(http.StatusOK, record)
}

func (s *Server) ExecuteAction(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "action ID is required",
		})
	}

	identity, ok := s.identity.Resolve(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "could not establish caller identity",
		})
	}

	log.WithFields(log.Fields{
		"action_id": id,
		"actor":     identity.ActorID,
	}).Info("Execution requested")

	ctx := c.Request().Context()
	record, denial, err := s.lifecycle.Execute(ctx, id)
	if denial != nil {
		return s.denialResponse(c, denial)
	}
	if err != nil {
		return s.errorResponse(c, id, err)
	}

	return c.JSON(http.StatusOK, record)
}

func (s *Server) RequestRollback(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "action ID is required",
		})
	}

	identity, ok := s.identity.Resolve(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "could not establish requester identity",
		})
	}

	ctx := c.Request().Context()
	record, err := s.lifecycle.RequestRollback(ctx, id, identity.ActorID)
	if err != nil {
		return s.errorResponse(c, id, err)
	}

	return c.JSON(http.StatusOK, record)
}

func (s *Server) ExecuteRollback(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "action ID is required",
		})
	}

	identity, ok := s.identity.Resolve(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "could not establish caller identity",
		})
	}

	log.WithFields(log.Fields{
		"action_id": id,
		"actor":     identity.ActorID,
	}).Info("Rollback execution requested")

	ctx := c.Request().Context()
	record, denial, err := s.lifecycle.ExecuteRollback(ctx, id)
	if denial != nil {
		return s.denialResponse(c, denial)
	}
	if err != nil {
		return s.errorResponse(c, id, err)
	}

	return c.JSON(http.StatusOK, record)
}

// denialResponse renders a policy/throttle denial as a structured outcome:
// 429 with Retry-After for throttling, 403 otherwise.
func (s *Server) denialResponse(c echo.Context, denial *service.GateDenial) error {
	if denial.Gate == "throttle" {
		c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", denial.RetryAfterSeconds))
		return c.JSON(http.StatusTooManyRequests, denial)
	}
	return c.JSON(http.StatusForbidden, denial)
}

func (s *Server) errorResponse(c echo.Context, actionID string, err error) error {
	var invalid *domain.InvalidTransitionError
	switch {
	case errors.Is(err, domain.ErrActionNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "action not found",
		})
	case errors.As(err, &invalid):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":           "invalid state transition",
			"attempted":       invalid.Attempted,
			"current_state":   invalid.From,
			"required_states": invalid.Required,
		})
	case errors.Is(err, domain.ErrVersionConflict):
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "action was modified concurrently, reload and retry",
		})
	default:
		log.WithError(err).WithField("action_id", actionID).Error("Request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}
