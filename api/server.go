// Package api exposes the task-gating core over HTTP: task submission, the
// approval client surface, and the websocket push channel.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quailyquaily/taskwarden/approval"
	"github.com/quailyquaily/taskwarden/gate"
)

type Config struct {
	Registry *approval.Registry
	Notifier *approval.Notifier
	Store    *gate.Store
	Logger   *slog.Logger

	// BaseContext parents queued tasks. It must outlive individual requests;
	// the request context is cancelled as soon as the submit response is
	// written, long before the worker picks the task up.
	BaseContext context.Context
}

type Server struct {
	log      *slog.Logger
	registry *approval.Registry
	notifier *approval.Notifier
	store    *gate.Store
	base     context.Context
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}
	return &Server{
		log:      log,
		registry: cfg.Registry,
		notifier: cfg.Notifier,
		store:    cfg.Store,
		base:     base,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", s.handleSubmitTask)
		r.Get("/tasks/{id}", s.handleGetTask)

		r.Route("/approvals", func(r chi.Router) {
			r.Get("/pending", s.handlePendingApprovals)
			r.Post("/respond", s.handleRespond)
			r.Get("/ws", s.handleApprovalsWS)
			r.Get("/{id}", s.handleGetApproval)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitTaskRequest struct {
	Task    string `json:"task"`
	Timeout string `json:"timeout,omitempty"` // time.ParseDuration; optional
}

type submitTaskResponse struct {
	ID     string          `json:"id"`
	Status gate.TaskStatus `json:"status"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue is not available")
		return
	}

	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		writeError(w, http.StatusBadRequest, "missing task description")
		return
	}
	var timeout time.Duration
	if strings.TrimSpace(req.Timeout) != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid timeout")
			return
		}
		timeout = d
	}

	info, err := s.store.Enqueue(s.base, req.Task, timeout)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.log.Info("task_submitted", "task_id", info.ID)
	writeJSON(w, http.StatusAccepted, submitTaskResponse{ID: info.ID, Status: info.Status})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "task queue is not available")
		return
	}
	id := chi.URLParam(r, "id")
	info, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ApprovalView is the approver-facing projection of an approval request.
type ApprovalView struct {
	RequestID        string    `json:"request_id"`
	Description      string    `json:"description"`
	RiskLevel        string    `json:"risk_level"`
	ConfidencePct    int       `json:"confidence_pct"`
	Reasoning        string    `json:"reasoning"`
	RiskFactors      []string  `json:"risk_factors"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	SecondsRemaining int       `json:"seconds_remaining"`
}

func viewOf(req approval.Request) ApprovalView {
	remaining := int(time.Until(req.ExpiresAt).Seconds())
	if remaining < 0 || req.Status != approval.StatusPending {
		remaining = 0
	}
	return ApprovalView{
		RequestID:        req.ID,
		Description:      req.Description,
		RiskLevel:        string(req.Assessment.Level),
		ConfidencePct:    int(req.Assessment.Confidence*100 + 0.5),
		Reasoning:        req.Assessment.Recommendation,
		RiskFactors:      req.Assessment.Factors,
		Status:           string(req.Status),
		CreatedAt:        req.CreatedAt,
		ExpiresAt:        req.ExpiresAt,
		SecondsRemaining: remaining,
	}
}

func (s *Server) handlePendingApprovals(w http.ResponseWriter, _ *http.Request) {
	pending := s.registry.Pending()
	views := make([]ApprovalView, 0, len(pending))
	for _, req := range pending {
		views = append(views, viewOf(req))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "approval request not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(req))
}

type respondRequest struct {
	RequestID string `json:"request_id"`
	Approved  *bool  `json:"approved"`
	UserNotes string `json:"user_notes,omitempty"`
}

type respondResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	// Changed is false when the request was already terminal and the
	// response was a no-op.
	Changed bool `json:"changed"`
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.RequestID) == "" {
		writeError(w, http.StatusBadRequest, "missing request_id")
		return
	}
	if req.Approved == nil {
		writeError(w, http.StatusBadRequest, "missing approved flag")
		return
	}

	rec, changed, err := s.registry.Resolve(req.RequestID, *req.Approved, req.UserNotes)
	if errors.Is(err, approval.ErrNotFound) {
		writeError(w, http.StatusNotFound, "approval request not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, respondResponse{
		RequestID: rec.ID,
		Status:    string(rec.Status),
		Changed:   changed,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
