package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"autoplan/internal/config"
	"autoplan/internal/engine"
	appLog "autoplan/internal/log"
	"autoplan/internal/model"
)

// TaskSource supplies the pending tasks a planning run schedules.
// *store.Store satisfies it.
type TaskSource interface {
	ListPending(ctx context.Context) ([]model.Task, error)
	Add(ctx context.Context, t model.Task) error
	MarkDone(ctx context.Context, id string) error
}

// BusySource supplies already-committed calendar events for a range.
// *ics.Client satisfies it.
type BusySource interface {
	Busy(ctx context.Context, rangeStart, rangeEnd time.Time) ([]model.ExistingEvent, error)
}

// Server provides HTTP APIs for task management and on-demand planning.
type Server struct {
	cfg    *config.Config
	tasks  TaskSource
	busy   BusySource
	engine *engine.Engine
	mux    *http.ServeMux

	// In-memory cache for /api/plan responses to avoid redundant
	// fetch/plan work when the UI polls.
	planMu    sync.RWMutex
	planCache *planCache
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, tasks TaskSource, busy BusySource, eng *engine.Engine) *Server {
	if eng == nil {
		eng = &engine.Engine{}
	}
	s := &Server{
		cfg:    cfg,
		tasks:  tasks,
		busy:   busy,
		engine: eng,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health is always exposed unauthenticated.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="autoplan", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer starts an HTTP server bound to cfg.Listen.
func StartServer(_ context.Context, cfg *config.Config, tasks TaskSource, busy BusySource, eng *engine.Engine) error {
	s := NewServer(cfg, tasks, busy, eng)
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	return http.ListenAndServe(cfg.Listen, s.Handler())
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/plan", s.handlePlan)
	s.mux.HandleFunc("/api/tasks", s.handleTasks)
	s.mux.HandleFunc("/api/tasks/done", s.handleTaskDone)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// proposedEventDTO is a JSON-friendly view of a planned event.
type proposedEventDTO struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	ColorID     string    `json:"color_id"`
	IsTemp      bool      `json:"is_temp"`
}

// planResponse is the JSON response shape for /api/plan.
type planResponse struct {
	Events             []proposedEventDTO `json:"events"`
	UnscheduledTaskIDs []string           `json:"unscheduled_task_ids,omitempty"`
	Warnings           []warningDTO       `json:"warnings,omitempty"`
	RangeStart         time.Time          `json:"range_start"`
	RangeEnd           time.Time          `json:"range_end"`
	Timezone           string             `json:"timezone"`
}

type warningDTO struct {
	BlockID string `json:"block_id"`
	Reason  string `json:"reason"`
}

// planCache holds a cached /api/plan response and its timestamp.
type planCache struct {
	resp      planResponse
	updatedAt time.Time
}

// handlePlan runs a planning pass over the pending tasks and the
// configured busy calendars.
//
// GET /api/plan?days=7
//   - days: planning horizon in days (default: config horizon_days)
//
// Proposed events are expressed in config.Timezone; an invalid
// timezone falls back to time.Local.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = 7
	}

	// Query-less requests within the TTL reuse the last plan. A plan
	// with jitter enabled is not stable across runs, so polling UIs
	// would otherwise see events shuffle on every refresh.
	const planCacheTTL = 30 * time.Second
	cacheNow := time.Now()

	if q.Get("days") == "" {
		s.planMu.RLock()
		pc := s.planCache
		s.planMu.RUnlock()
		if pc != nil && cacheNow.Sub(pc.updatedAt) < planCacheTTL {
			writeJSON(w, http.StatusOK, pc.resp)
			return
		}
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)

	now := time.Now().In(loc)
	rangeStart := now
	rangeEnd := now.AddDate(0, 0, days)

	appLog.Info("api plan request",
		"days", days,
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
		"timezone", s.cfg.Timezone,
	)

	tasks, err := s.tasks.ListPending(ctx)
	if err != nil {
		appLog.Error("api plan: listing pending tasks failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}

	var busy []model.ExistingEvent
	if s.busy != nil {
		busy, err = s.busy.Busy(ctx, rangeStart, rangeEnd)
		if err != nil {
			appLog.Error("api plan: busy calendar load failed", err)
			writeError(w, http.StatusBadGateway, "failed to load busy calendars")
			return
		}
	}

	result, err := s.engine.Schedule(tasks, s.cfg.Rules, rangeStart, rangeEnd, busy, s.cfg.ScheduleSource)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRules) || errors.Is(err, engine.ErrInvalidDateRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Error("api plan: scheduling failed", err)
		writeError(w, http.StatusInternalServerError, "planning failed")
		return
	}

	dtos := make([]proposedEventDTO, 0, len(result.Events))
	for _, ev := range result.Events {
		dtos = append(dtos, proposedEventDTO{
			ID:          ev.ID,
			TaskID:      ev.TaskID,
			Summary:     ev.Summary,
			Description: ev.Description,
			Start:       ev.Start,
			End:         ev.End,
			ColorID:     ev.ColorID,
			IsTemp:      ev.IsTemp,
		})
	}

	warnings := make([]warningDTO, 0, len(result.Warnings))
	for _, wn := range result.Warnings {
		warnings = append(warnings, warningDTO{BlockID: wn.BlockID, Reason: wn.Reason})
	}

	resp := planResponse{
		Events:             dtos,
		UnscheduledTaskIDs: result.UnscheduledTaskIDs,
		Warnings:           warnings,
		RangeStart:         rangeStart,
		RangeEnd:           rangeEnd,
		Timezone:           loc.String(),
	}

	if q.Get("days") == "" {
		s.planMu.Lock()
		s.planCache = &planCache{resp: resp, updatedAt: time.Now()}
		s.planMu.Unlock()
	}

	writeJSON(w, http.StatusOK, resp)
}

// taskDTO is the JSON shape for tasks on /api/tasks.
type taskDTO struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Priority        string     `json:"priority"`
	Energy          string     `json:"energy,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	Source          string     `json:"source,omitempty"`
}

// handleTasks lists pending tasks (GET) or upserts one (POST).
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		tasks, err := s.tasks.ListPending(ctx)
		if err != nil {
			appLog.Error("api tasks: list failed", err)
			writeError(w, http.StatusInternalServerError, "failed to load tasks")
			return
		}
		dtos := make([]taskDTO, 0, len(tasks))
		for _, t := range tasks {
			dtos = append(dtos, taskDTO{
				ID:              t.ID,
				Title:           t.Title,
				DurationMinutes: t.DurationMinutes,
				Priority:        string(t.Priority),
				Energy:          t.Energy,
				DueDate:         t.DueDate,
				Source:          t.Source,
			})
		}
		writeJSON(w, http.StatusOK, dtos)

	case http.MethodPost:
		var dto taskDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if dto.ID == "" || dto.Title == "" {
			writeError(w, http.StatusBadRequest, "id and title are required")
			return
		}
		task := model.Task{
			ID:              dto.ID,
			Title:           dto.Title,
			DurationMinutes: dto.DurationMinutes,
			Priority:        model.Priority(dto.Priority),
			Energy:          dto.Energy,
			DueDate:         dto.DueDate,
			Source:          dto.Source,
		}
		if err := s.tasks.Add(ctx, task); err != nil {
			appLog.Error("api tasks: add failed", err, "id", dto.ID)
			writeError(w, http.StatusInternalServerError, "failed to save task")
			return
		}
		s.invalidatePlan()
		writeJSON(w, http.StatusCreated, dto)

	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleTaskDone marks a task completed so later plans skip it.
//
// POST /api/tasks/done?id=<task-id>
func (s *Server) handleTaskDone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.tasks.MarkDone(r.Context(), id); err != nil {
		appLog.Error("api tasks: mark done failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	s.invalidatePlan()
	w.WriteHeader(http.StatusNoContent)
}

// invalidatePlan drops the cached plan after a task mutation.
func (s *Server) invalidatePlan() {
	s.planMu.Lock()
	s.planCache = nil
	s.planMu.Unlock()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
