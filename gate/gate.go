// Package gate orchestrates the risk-gated execution flow: classify the
// task, park it for human approval when required, and only then hand it to
// the external runner.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quailyquaily/taskwarden/approval"
	"github.com/quailyquaily/taskwarden/risk"
	"github.com/quailyquaily/taskwarden/runner"
)

type Disposition string

const (
	// DispositionExecuted: the task was low-risk and ran directly.
	DispositionExecuted Disposition = "executed"
	// DispositionExecutedApproved: the task ran after an affirmative approval.
	DispositionExecutedApproved Disposition = "executed_after_approval"
	DispositionDenied           Disposition = "denied"
	DispositionExpired          Disposition = "expired"
)

// Outcome is the terminal result of one gated execution.
type Outcome struct {
	Disposition Disposition     `json:"disposition"`
	Gated       bool            `json:"gated"`
	Approved    bool            `json:"approved"`
	RequestID   string          `json:"request_id,omitempty"`
	Assessment  risk.Assessment `json:"assessment"`

	// Trace is the runner's raw output, forwarded unmodified.
	Trace string `json:"trace,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type Executor struct {
	classifier risk.Classifier
	registry   *approval.Registry
	run        runner.Runner
	timeout    time.Duration
	log        *slog.Logger
}

type Option func(*Executor)

// WithApprovalTimeout overrides the registry default for requests created by
// this executor.
func WithApprovalTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

func NewExecutor(classifier risk.Classifier, registry *approval.Registry, run runner.Runner, opts ...Option) (*Executor, error) {
	if classifier == nil {
		return nil, fmt.Errorf("missing classifier")
	}
	if registry == nil {
		return nil, fmt.Errorf("missing approval registry")
	}
	if run == nil {
		return nil, fmt.Errorf("missing runner")
	}
	e := &Executor{
		classifier: classifier,
		registry:   registry,
		run:        run,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs the full gate flow for one task. Denial and expiry are normal
// terminal outcomes, not errors; only runner and infrastructure failures
// surface as errors, and retrying is the caller's business.
func (e *Executor) Execute(ctx context.Context, task string) (Outcome, error) {
	return e.ExecuteWithHook(ctx, task, nil)
}

// ExecuteWithHook additionally reports the approval request the moment the
// execution suspends, for callers tracking per-task state.
func (e *Executor) ExecuteWithHook(ctx context.Context, task string, suspended func(approval.Request)) (Outcome, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return Outcome{}, fmt.Errorf("empty task description")
	}

	assessment := e.classifier.Classify(task)
	out := Outcome{Assessment: assessment}

	if !assessment.RequiresApproval {
		e.log.Info("task_dispatched",
			"risk_level", string(assessment.Level),
			"gated", false,
		)
		trace, err := e.run.Run(ctx, task)
		if err != nil {
			return out, fmt.Errorf("runner: %w", err)
		}
		out.Disposition = DispositionExecuted
		out.Trace = trace
		return out, nil
	}

	req := e.registry.Create(task, assessment, e.timeout)
	out.Gated = true
	out.RequestID = req.ID
	if suspended != nil {
		suspended(req)
	}
	e.log.Info("task_awaiting_approval",
		"request_id", req.ID,
		"risk_level", string(assessment.Level),
		"expires_at", req.ExpiresAt,
	)

	resolved, err := e.registry.Await(ctx, req.ID)
	if err != nil {
		return out, err
	}

	switch resolved.Status {
	case approval.StatusApproved:
		out.Approved = true
		out.Notes = resolved.Notes
		e.log.Info("task_approved", "request_id", req.ID)
		trace, err := e.run.Run(ctx, task)
		if err != nil {
			return out, fmt.Errorf("runner: %w", err)
		}
		out.Disposition = DispositionExecutedApproved
		out.Trace = trace
		return out, nil
	case approval.StatusDenied:
		out.Disposition = DispositionDenied
		out.Notes = resolved.Notes
		e.log.Info("task_denied", "request_id", req.ID)
		return out, nil
	default:
		out.Disposition = DispositionExpired
		e.log.Info("task_expired", "request_id", req.ID)
		return out, nil
	}
}
