package executor

import (
	"context"
	"fmt"
)

// DryRunExecutor performs no external I/O and always succeeds with a
// deterministic synthetic response. It exists so the lifecycle machinery
// can be exercised without any real infrastructure.
type DryRunExecutor struct{}

func NewDryRunExecutor() *DryRunExecutor {
	return &DryRunExecutor{}
}

func (e *DryRunExecutor) Execute(ctx context.Context, actionType, payloadJSON string) (Result, error) {
	return Result{
		Success:      true,
		ResponseJSON: fmt.Sprintf(`{"dry_run":true,"operation":"execute","action_type":%q}`, actionType),
	}, nil
}

func (e *DryRunExecutor) Rollback(ctx context.Context, actionType, rollbackPayloadJSON string) (Result, error) {
	return Result{
		Success:      true,
		ResponseJSON: fmt.Sprintf(`{"dry_run":true,"operation":"rollback","action_type":%q}`, actionType),
	}, nil
}
