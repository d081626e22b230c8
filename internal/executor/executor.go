package executor

import (
	"context"
	"time"
)

// Result captures one executor attempt. A failed attempt is a Result with
// Success=false, not an error; errors are reserved for transport-level
// problems and are still folded into a failed Result by the caller.
type Result struct {
	Success      bool
	ResponseJSON string
	Duration     time.Duration
}

// Executor is the port to the side-effecting remediation call and its
// rollback counterpart. Production implementations (cluster APIs, cloud
// SDKs) plug in behind this interface.
type Executor interface {
	Execute(ctx context.Context, actionType, payloadJSON string) (Result, error)
	Rollback(ctx context.Context, actionType, rollbackPayloadJSON string) (Result, error)
}
