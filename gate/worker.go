package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quailyquaily/taskwarden/approval"
)

// Worker drains the task store and runs each task through the executor.
type Worker struct {
	store *Store
	exec  *Executor
	log   *slog.Logger
}

func NewWorker(store *Store, exec *Executor, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{store: store, exec: exec, log: log}
}

// Run processes tasks until the store is closed.
func (w *Worker) Run() {
	for {
		qt, ok := w.store.Next()
		if !ok {
			return
		}
		w.process(qt)
	}
}

func (w *Worker) process(qt *queuedTask) {
	id := qt.info.ID
	defer qt.cancel()

	now := time.Now()
	w.store.Update(id, func(info *TaskInfo) {
		info.Status = TaskRunning
		info.StartedAt = &now
	})
	w.log.Info("task_started", "task_id", id)

	out, err := w.exec.ExecuteWithHook(qt.ctx, qt.info.Task, func(req approval.Request) {
		w.store.Update(id, func(info *TaskInfo) {
			info.Status = TaskAwaitingApproval
			info.RequestID = req.ID
			info.RiskLevel = req.Assessment.Level
		})
	})

	finished := time.Now()
	w.store.Update(id, func(info *TaskInfo) {
		info.FinishedAt = &finished
		info.RiskLevel = out.Assessment.Level
		info.RequestID = out.RequestID
		info.Approved = out.Approved
		info.Trace = out.Trace
		switch {
		case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			info.Status = TaskCanceled
			info.Error = err.Error()
		case err != nil:
			info.Status = TaskFailed
			info.Error = err.Error()
		case out.Disposition == DispositionDenied:
			info.Status = TaskDenied
		case out.Disposition == DispositionExpired:
			info.Status = TaskExpired
		default:
			info.Status = TaskDone
		}
	})

	if err != nil {
		w.log.Warn("task_finished", "task_id", id, "error", err.Error())
		return
	}
	w.log.Info("task_finished", "task_id", id, "disposition", string(out.Disposition))
}
