package gate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quailyquaily/taskwarden/risk"
)

const defaultCompletedTTL = 30 * time.Minute

type TaskStatus string

const (
	TaskQueued           TaskStatus = "queued"
	TaskRunning          TaskStatus = "running"
	TaskAwaitingApproval TaskStatus = "awaiting_approval"
	TaskDone             TaskStatus = "done"
	TaskDenied           TaskStatus = "denied"
	TaskExpired          TaskStatus = "expired"
	TaskFailed           TaskStatus = "failed"
	TaskCanceled         TaskStatus = "canceled"
)

// isTerminal returns true for task statuses that represent a finished task.
func isTerminal(st TaskStatus) bool {
	switch st {
	case TaskDone, TaskDenied, TaskExpired, TaskFailed, TaskCanceled:
		return true
	}
	return false
}

type TaskInfo struct {
	ID         string     `json:"id"`
	Status     TaskStatus `json:"status"`
	Task       string     `json:"task"`
	Timeout    string     `json:"timeout"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	RequestID string     `json:"approval_request_id,omitempty"`
	RiskLevel risk.Level `json:"risk_level,omitempty"`
	Approved  bool       `json:"approved,omitempty"`

	Trace string `json:"trace,omitempty"`
	Error string `json:"error,omitempty"`
}

type queuedTask struct {
	info   *TaskInfo
	ctx    context.Context
	cancel context.CancelFunc
}

// Store is the bounded in-memory task queue behind the submit API. Terminal
// tasks stay readable for completedTTL and are then evicted so the map does
// not grow unbounded in a long-running daemon.
type Store struct {
	mu           sync.RWMutex
	tasks        map[string]*queuedTask
	queue        chan *queuedTask
	done         chan struct{} // closed by Close() to signal shutdown
	closeOnce    sync.Once
	completedTTL time.Duration
}

func NewStore(maxQueue int) *Store {
	if maxQueue <= 0 {
		maxQueue = 100
	}
	s := &Store{
		tasks:        make(map[string]*queuedTask),
		queue:        make(chan *queuedTask, maxQueue),
		done:         make(chan struct{}),
		completedTTL: defaultCompletedTTL,
	}
	go s.evictLoop()
	return s
}

func (s *Store) Enqueue(parent context.Context, task string, timeout time.Duration) (*TaskInfo, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, fmt.Errorf("empty task description")
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	select {
	case <-s.done:
		return nil, fmt.Errorf("store is closed")
	default:
	}

	now := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)

	info := &TaskInfo{
		ID:        uuid.NewString(),
		Status:    TaskQueued,
		Task:      task,
		Timeout:   timeout.String(),
		CreatedAt: now,
	}
	qt := &queuedTask{info: info, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	s.tasks[info.ID] = qt
	s.mu.Unlock()

	select {
	case s.queue <- qt:
		cp := *info
		return &cp, nil
	default:
		qt.cancel()
		s.mu.Lock()
		delete(s.tasks, info.ID)
		s.mu.Unlock()
		return nil, fmt.Errorf("queue is full")
	}
}

func (s *Store) Get(id string) (*TaskInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qt, ok := s.tasks[id]
	if !ok || qt == nil || qt.info == nil {
		return nil, false
	}
	// Return a shallow copy for safe reads.
	cp := *qt.info
	return &cp, true
}

func (s *Store) Update(id string, fn func(info *TaskInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qt := s.tasks[id]
	if qt == nil || qt.info == nil {
		return
	}
	fn(qt.info)
}

// Next blocks until a task is available or the store is closed.
// Returns (nil, false) when the store is closed.
func (s *Store) Next() (*queuedTask, bool) {
	select {
	case qt, ok := <-s.queue:
		return qt, ok
	case <-s.done:
		return nil, false
	}
}

// Close signals the store to shut down. It cancels all in-flight task
// contexts so workers exit cleanly.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancelAll()
	})
}

func (s *Store) cancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, qt := range s.tasks {
		if qt != nil && qt.cancel != nil {
			qt.cancel()
		}
	}
}

func (s *Store) evictLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *Store) evictExpired() {
	now := time.Now()
	ttl := s.completedTTL
	if ttl <= 0 {
		ttl = defaultCompletedTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, qt := range s.tasks {
		if qt == nil || qt.info == nil {
			delete(s.tasks, id)
			continue
		}
		if !isTerminal(qt.info.Status) {
			continue
		}
		if qt.info.FinishedAt != nil && now.Sub(*qt.info.FinishedAt) > ttl {
			delete(s.tasks, id)
		}
	}
}
