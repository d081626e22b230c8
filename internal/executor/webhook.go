package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const maxWebhookResponseBytes = 16 * 1024

// WebhookExecutor delivers the action payload to an HTTPS endpoint named by
// the payload's target_url field. Every target is admission-checked by the
// validator before any connection is made.
type WebhookExecutor struct {
	client    *http.Client
	validator TargetValidator
}

func NewWebhookExecutor(client *http.Client, validator TargetValidator) *WebhookExecutor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebhookExecutor{client: client, validator: validator}
}

func (e *WebhookExecutor) Execute(ctx context.Context, actionType, payloadJSON string) (Result, error) {
	return e.deliver(ctx, actionType, payloadJSON)
}

func (e *WebhookExecutor) Rollback(ctx context.Context, actionType, rollbackPayloadJSON string) (Result, error) {
	return e.deliver(ctx, actionType, rollbackPayloadJSON)
}

func (e *WebhookExecutor) deliver(ctx context.Context, actionType, payloadJSON string) (Result, error) {
	start := time.Now()

	var payload struct {
		TargetURL string `json:"target_url"`
	}
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil || payload.TargetURL == "" {
		return failure(start, "payload has no valid target_url field"), nil
	}

	if ok, reason := e.validator.Validate(ctx, payload.TargetURL); !ok {
		log.WithFields(log.Fields{
			"action_type": actionType,
			"reason":      reason,
		}).Warn("Webhook target rejected")
		return failure(start, fmt.Sprintf("target rejected: %s", reason)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, payload.TargetURL, bytes.NewBufferString(payloadJSON))
	if err != nil {
		return failure(start, fmt.Sprintf("failed to build request: %v", err)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return failure(start, fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes))

	out, _ := json.Marshal(map[string]interface{}{
		"status_code": resp.StatusCode,
		"body":        string(body),
	})

	return Result{
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		ResponseJSON: string(out),
		Duration:     time.Since(start),
	}, nil
}

func failure(start time.Time, message string) Result {
	out, _ := json.Marshal(map[string]string{"error": message})
	return Result{
		Success:      false,
		ResponseJSON: string(out),
		Duration:     time.Since(start),
	}
}
