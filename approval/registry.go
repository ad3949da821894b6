package approval

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quailyquaily/taskwarden/risk"
)

const (
	DefaultTimeout   = 60 * time.Second
	defaultRetention = 30 * time.Minute
	defaultSweepTick = 5 * time.Second
)

type Config struct {
	// DefaultTimeout applies when Create is called with timeout <= 0.
	DefaultTimeout time.Duration

	// Retention is how long terminal requests stay readable before the
	// sweep purges them from the table.
	Retention time.Duration

	SweepInterval time.Duration
}

type entry struct {
	req Request

	// waiter is the one-shot rendezvous for Await. It is signalled exactly
	// once, by whichever of resolve/expiry wins under the registry mutex.
	waiter chan Request

	purgeAt time.Time
}

// Registry owns the approval request table. All mutation goes through
// Resolve or the expiry path, serialized by a single mutex; request volume
// is bounded by human approval throughput, so a coarse lock is fine.
type Registry struct {
	cfg     Config
	log     *slog.Logger
	notify  *Notifier
	audit   AuditSink
	archive Archive

	mu      sync.Mutex
	entries map[string]*entry

	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Registry)

func WithNotifier(n *Notifier) Option {
	return func(r *Registry) { r.notify = n }
}

func WithAuditSink(s AuditSink) Option {
	return func(r *Registry) { r.audit = s }
}

func WithArchive(a Archive) Option {
	return func(r *Registry) { r.archive = a }
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

func NewRegistry(cfg Config, opts ...Option) *Registry {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepTick
	}
	r := &Registry{
		cfg:     cfg,
		log:     slog.Default(),
		entries: make(map[string]*entry),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.sweepLoop()
	return r
}

// Close stops the background sweep. Pending requests are left to their
// callers; a closed registry still serves reads and resolutions.
func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Create inserts a new pending request and returns a copy of it.
func (r *Registry) Create(description string, assessment risk.Assessment, timeout time.Duration) Request {
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	now := time.Now().UTC()
	req := Request{
		ID:          uuid.NewString(),
		Description: description,
		Assessment:  assessment,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(timeout),
	}

	r.mu.Lock()
	r.entries[req.ID] = &entry{
		req:    req,
		waiter: make(chan Request, 1),
	}
	r.mu.Unlock()

	r.log.Info("approval_request_created",
		"request_id", req.ID,
		"risk_level", string(assessment.Level),
		"expires_at", req.ExpiresAt,
	)
	r.publish(EventNewRequest, req)
	r.auditEmit(req)
	return req
}

// Get returns a copy of the request. A pending request observed past its
// deadline is expired as a side effect of the read.
func (r *Registry) Get(id string) (Request, bool) {
	now := time.Now().UTC()

	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return Request{}, false
	}
	expired := r.maybeExpireLocked(e, now)
	req := e.req
	r.mu.Unlock()

	if expired {
		r.finishExpired(req)
	}
	return req, true
}

// Pending returns all pending requests ordered by creation time. Overdue
// entries are transitioned to expired and excluded (lazy expiry), so the
// pull view can never show a request the push view has already retired.
func (r *Registry) Pending() []Request {
	now := time.Now().UTC()

	var expired []Request
	var out []Request
	r.mu.Lock()
	for _, e := range r.entries {
		if r.maybeExpireLocked(e, now) {
			expired = append(expired, e.req)
			continue
		}
		if e.req.Status == StatusPending {
			out = append(out, e.req)
		}
	}
	r.mu.Unlock()

	for _, req := range expired {
		r.finishExpired(req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Resolve records a human decision. The first writer wins: a request that is
// already terminal is returned unchanged with changed=false, never an error.
func (r *Registry) Resolve(id string, approved bool, notes string) (Request, bool, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return Request{}, false, ErrNotFound
	}
	// A resolution racing the expiry deadline loses if the sweep or a lazy
	// read got here first.
	if r.maybeExpireLocked(e, now) {
		req := e.req
		r.mu.Unlock()
		r.finishExpired(req)
		return req, false, nil
	}
	if e.req.Status.Terminal() {
		req := e.req
		r.mu.Unlock()
		return req, false, nil
	}

	if approved {
		e.req.Status = StatusApproved
	} else {
		e.req.Status = StatusDenied
	}
	e.req.Notes = notes
	t := now
	e.req.ResolvedAt = &t
	e.purgeAt = now.Add(r.cfg.Retention)
	e.waiter <- e.req // buffered; single send guaranteed by the status guard
	req := e.req
	r.mu.Unlock()

	r.log.Info("approval_request_resolved",
		"request_id", req.ID,
		"status", string(req.Status),
	)
	r.publish(EventStatusChanged, req)
	r.auditEmit(req)
	r.archiveStore(req)
	return req, true, nil
}

// Await suspends until the request is resolved, its deadline passes, or ctx
// is cancelled. Deadline and cancellation both drive the request to a
// terminal state so nothing is left dangling for the sweep to babysit.
// Exactly one of resolve/expiry decides the outcome; the registry mutex, not
// wall-clock ordering, guarantees it.
func (r *Registry) Await(ctx context.Context, id string) (Request, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return Request{}, ErrNotFound
	}
	if e.req.Status.Terminal() {
		req := e.req
		r.mu.Unlock()
		return req, nil
	}
	waiter := e.waiter
	deadline := e.req.ExpiresAt
	r.mu.Unlock()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case req := <-waiter:
		return req, nil
	case <-timer.C:
		// The deadline fired, but a resolution may have slipped in just
		// ahead of us; expire() returns whichever terminal state won.
		return r.expire(id), nil
	case <-ctx.Done():
		r.expire(id)
		return Request{}, ctx.Err()
	}
}

// expire drives a request to a terminal state. If it already is terminal the
// existing state is returned untouched.
func (r *Registry) expire(id string) Request {
	now := time.Now().UTC()

	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return Request{ID: id, Status: StatusExpired}
	}
	if e.req.Status.Terminal() {
		req := e.req
		r.mu.Unlock()
		return req
	}
	r.markExpiredLocked(e, now)
	req := e.req
	r.mu.Unlock()

	r.finishExpired(req)
	return req
}

// maybeExpireLocked transitions an overdue pending entry to expired.
// Caller holds r.mu and must call finishExpired after unlocking when this
// returns true.
func (r *Registry) maybeExpireLocked(e *entry, now time.Time) bool {
	if e.req.Status != StatusPending || now.Before(e.req.ExpiresAt) {
		return false
	}
	r.markExpiredLocked(e, now)
	return true
}

func (r *Registry) markExpiredLocked(e *entry, now time.Time) {
	e.req.Status = StatusExpired
	t := now
	e.req.ResolvedAt = &t
	e.purgeAt = now.Add(r.cfg.Retention)
	e.waiter <- e.req
}

// finishExpired handles the post-lock side effects of an expiry transition.
func (r *Registry) finishExpired(req Request) {
	r.log.Info("approval_request_expired", "request_id", req.ID)
	r.publish(EventStatusChanged, req)
	r.auditEmit(req)
	r.archiveStore(req)
}

func (r *Registry) publish(typ EventType, req Request) {
	if r.notify == nil {
		return
	}
	r.notify.Publish(Event{
		Type:      typ,
		RequestID: req.ID,
		RiskLevel: req.Assessment.Level,
		Status:    req.Status,
		Summary:   Summarize(req.Description),
	})
}

func (r *Registry) auditEmit(req Request) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Emit(context.Background(), auditEventFor(req)); err != nil {
		r.log.Warn("approval_audit_error", "request_id", req.ID, "error", err.Error())
	}
}

func (r *Registry) archiveStore(req Request) {
	if r.archive == nil || !req.Status.Terminal() {
		return
	}
	if err := r.archive.Store(context.Background(), req); err != nil {
		r.log.Warn("approval_archive_error", "request_id", req.ID, "error", err.Error())
	}
}

// sweepLoop expires overdue pending requests in the background (covering
// abandoned Await callers) and purges terminal ones past their retention
// window so the table stays bounded.
func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	now := time.Now().UTC()

	var expired []Request
	r.mu.Lock()
	for id, e := range r.entries {
		if r.maybeExpireLocked(e, now) {
			expired = append(expired, e.req)
			continue
		}
		if e.req.Status.Terminal() && !e.purgeAt.IsZero() && now.After(e.purgeAt) {
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, req := range expired {
		r.finishExpired(req)
	}
}
