package gate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/taskwarden/approval"
	"github.com/quailyquaily/taskwarden/risk"
	"github.com/quailyquaily/taskwarden/runner"
)

type countingRunner struct {
	mu    sync.Mutex
	calls []string
	trace string
	err   error
}

func (r *countingRunner) Run(_ context.Context, description string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, description)
	if r.err != nil {
		return "", r.err
	}
	return r.trace, nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type testEnv struct {
	registry *approval.Registry
	run      *countingRunner
	exec     *Executor
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	classifier, err := risk.NewClassifier(risk.DefaultConfig())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	registry := approval.NewRegistry(approval.Config{SweepInterval: time.Hour})
	t.Cleanup(registry.Close)

	run := &countingRunner{trace: "trace: done"}
	exec, err := NewExecutor(classifier, registry, run, opts...)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return &testEnv{registry: registry, run: run, exec: exec}
}

// approveWhenPending resolves the first pending request that shows up.
func approveWhenPending(t *testing.T, registry *approval.Registry, approved bool) {
	t.Helper()
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if pending := registry.Pending(); len(pending) > 0 {
				_, _, _ = registry.Resolve(pending[0].ID, approved, "")
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func TestExecuteSafeTaskRunsDirectly(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.exec.Execute(context.Background(), "Go to example.com and click About")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Disposition != DispositionExecuted {
		t.Fatalf("disposition = %s, want executed", out.Disposition)
	}
	if out.Gated || out.Approved {
		t.Fatalf("safe task marked gated=%v approved=%v", out.Gated, out.Approved)
	}
	// The runner's result comes back unmodified.
	if out.Trace != "trace: done" {
		t.Fatalf("trace = %q", out.Trace)
	}
	if env.run.count() != 1 {
		t.Fatalf("runner invoked %d times, want 1", env.run.count())
	}
	if len(env.registry.Pending()) != 0 {
		t.Fatal("safe task created an approval request")
	}
}

func TestExecuteRiskyTaskApproved(t *testing.T) {
	env := newTestEnv(t)
	approveWhenPending(t, env.registry, true)

	task := "Add the product to the cart and complete checkout with credit card 4111-1111-1111-1111"
	out, err := env.exec.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Disposition != DispositionExecutedApproved {
		t.Fatalf("disposition = %s, want executed_after_approval", out.Disposition)
	}
	if !out.Gated || !out.Approved {
		t.Fatalf("gated=%v approved=%v, want both true", out.Gated, out.Approved)
	}
	if out.RequestID == "" {
		t.Fatal("missing request id")
	}
	if env.run.count() != 1 {
		t.Fatalf("runner invoked %d times, want 1", env.run.count())
	}

	// The recorded approval stays observable.
	rec, ok := env.registry.Get(out.RequestID)
	if !ok || rec.Status != approval.StatusApproved {
		t.Fatalf("registry record = %v/%v, want approved", rec.Status, ok)
	}
}

func TestExecuteRiskyTaskDenied(t *testing.T) {
	env := newTestEnv(t)
	approveWhenPending(t, env.registry, false)

	out, err := env.exec.Execute(context.Background(), "Login and delete my account")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Disposition != DispositionDenied {
		t.Fatalf("disposition = %s, want denied", out.Disposition)
	}
	if out.Approved {
		t.Fatal("denied task marked approved")
	}
	// Core safety invariant: the runner never saw the task.
	if env.run.count() != 0 {
		t.Fatalf("runner invoked %d times, want 0", env.run.count())
	}
}

func TestExecuteRiskyTaskExpires(t *testing.T) {
	env := newTestEnv(t, WithApprovalTimeout(20*time.Millisecond))

	out, err := env.exec.Execute(context.Background(), "Complete checkout now")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Disposition != DispositionExpired {
		t.Fatalf("disposition = %s, want expired", out.Disposition)
	}
	if env.run.count() != 0 {
		t.Fatalf("runner invoked %d times, want 0", env.run.count())
	}

	rec, ok := env.registry.Get(out.RequestID)
	if !ok || rec.Status != approval.StatusExpired {
		t.Fatalf("registry record = %v/%v, want expired", rec.Status, ok)
	}
}

func TestExecuteRunnerFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	env.run.err = errors.New("browser crashed")

	_, err := env.exec.Execute(context.Background(), "Go to example.com and read the title")
	if err == nil {
		t.Fatal("expected runner failure to propagate")
	}
	if !strings.Contains(err.Error(), "browser crashed") {
		t.Fatalf("err = %v", err)
	}
}

func TestExecuteRunnerFailureAfterApproval(t *testing.T) {
	env := newTestEnv(t)
	env.run.err = errors.New("browser crashed")
	approveWhenPending(t, env.registry, true)

	out, err := env.exec.Execute(context.Background(), "Complete checkout now")
	if err == nil {
		t.Fatal("expected runner failure to propagate")
	}
	// The approval decision itself survives the failure.
	if !out.Approved {
		t.Fatal("approval flag lost on runner failure")
	}
}

func TestExecuteEmptyTask(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.exec.Execute(context.Background(), "   "); err == nil {
		t.Fatal("expected validation error for empty task")
	}
	if env.run.count() != 0 {
		t.Fatal("runner invoked for empty task")
	}
}

func TestExecuteCancelledWhileSuspended(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	var requestID string
	done := make(chan error, 1)
	go func() {
		_, err := env.exec.ExecuteWithHook(ctx, "Complete checkout now", func(req approval.Request) {
			requestID = req.ID
			cancel()
		})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
	if env.run.count() != 0 {
		t.Fatal("runner invoked for cancelled task")
	}

	// The orphaned request was driven to a terminal state.
	rec, ok := env.registry.Get(requestID)
	if !ok || !rec.Status.Terminal() {
		t.Fatalf("request left dangling: %v/%v", rec.Status, ok)
	}
}

func TestExecuteDoubleRespondKeepsFirstDecision(t *testing.T) {
	env := newTestEnv(t)

	var requestID string
	done := make(chan Outcome, 1)
	go func() {
		out, err := env.exec.ExecuteWithHook(context.Background(), "Complete checkout now", func(req approval.Request) {
			requestID = req.ID
			_, _, _ = env.registry.Resolve(req.ID, true, "first")
		})
		if err != nil {
			t.Errorf("Execute: %v", err)
		}
		done <- out
	}()

	out := <-done
	if out.Disposition != DispositionExecutedApproved {
		t.Fatalf("disposition = %s", out.Disposition)
	}

	// A conflicting second response is a no-op returning the first outcome.
	rec, changed, err := env.registry.Resolve(requestID, false, "second")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if changed || rec.Status != approval.StatusApproved {
		t.Fatalf("second respond changed=%v status=%s, want unchanged approved", changed, rec.Status)
	}
}

var _ runner.Runner = (*countingRunner)(nil)
