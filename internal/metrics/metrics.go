package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the service's telemetry counters. All methods are nil-safe
// and fire-and-forget: telemetry never blocks or fails a lifecycle
// operation.
type Recorder struct {
	executionAttempts   *prometheus.CounterVec
	policyDenials       *prometheus.CounterVec
	throttleDenials     prometheus.Counter
	approvalDecisions   *prometheus.CounterVec
	transitionConflicts prometheus.Counter
	queries             prometheus.Counter
}

func NewRecorder() *Recorder {
	return &Recorder{
		executionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remediation_execution_attempts_total",
			Help: "Executor attempts by operation and result.",
		}, []string{"operation", "result"}),
		policyDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remediation_policy_denials_total",
			Help: "Policy gate denials by gate.",
		}, []string{"gate"}),
		throttleDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remediation_throttle_denials_total",
			Help: "Execution attempts denied by the throttle gate.",
		}),
		approvalDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remediation_approval_decisions_total",
			Help: "Approval ledger decisions by decision and target.",
		}, []string{"decision", "target"}),
		transitionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remediation_transition_conflicts_total",
			Help: "Lifecycle transitions rejected for being in the wrong state.",
		}),
		queries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "remediation_queries_total",
			Help: "List/detail query volume.",
		}),
	}
}

func (r *Recorder) ExecutionAttempt(operation, result string) {
	if r == nil {
		return
	}
	r.executionAttempts.WithLabelValues(operation, result).Inc()
}

func (r *Recorder) PolicyDenial(gate string) {
	if r == nil {
		return
	}
	r.policyDenials.WithLabelValues(gate).Inc()
}

func (r *Recorder) ThrottleDenial() {
	if r == nil {
		return
	}
	r.throttleDenials.Inc()
}

func (r *Recorder) ApprovalDecision(decision, target string) {
	if r == nil {
		return
	}
	r.approvalDecisions.WithLabelValues(decision, target).Inc()
}

func (r *Recorder) TransitionConflict() {
	if r == nil {
		return
	}
	r.transitionConflicts.Inc()
}

func (r *Recorder) Query() {
	if r == nil {
		return
	}
	r.queries.Inc()
}
