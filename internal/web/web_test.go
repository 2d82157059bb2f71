package web

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autoplan/internal/config"
	"autoplan/internal/engine"
	"autoplan/internal/model"
)

type fakeTaskSource struct {
	tasks []model.Task
	done  []string
}

func (f *fakeTaskSource) ListPending(_ context.Context) ([]model.Task, error) {
	out := make([]model.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		skip := false
		for _, id := range f.done {
			if id == t.ID {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTaskSource) Add(_ context.Context, t model.Task) error {
	for i, existing := range f.tasks {
		if existing.ID == t.ID {
			f.tasks[i] = t
			return nil
		}
	}
	f.tasks = append(f.tasks, t)
	return nil
}

func (f *fakeTaskSource) MarkDone(_ context.Context, id string) error {
	f.done = append(f.done, id)
	return nil
}

type fakeBusySource struct {
	events []model.ExistingEvent
}

func (f *fakeBusySource) Busy(_ context.Context, _, _ time.Time) ([]model.ExistingEvent, error) {
	return f.events, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Rules.RandomnessFactor = 0
	return cfg
}

func testEngine() *engine.Engine {
	return &engine.Engine{
		Rand: rand.New(rand.NewSource(1)),
	}
}

func newTestServer(t *testing.T, cfg *config.Config, tasks TaskSource, busy BusySource) *Server {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	return NewServer(cfg, tasks, busy, testEngine())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, &fakeTaskSource{}, &fakeBusySource{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "OK" {
		t.Errorf("body = %q, want OK", got)
	}
}

func TestPlanReturnsEvents(t *testing.T) {
	tasks := &fakeTaskSource{tasks: []model.Task{
		{ID: "t1", Title: "Write report", DurationMinutes: 30, Priority: model.PriorityHigh},
	}}
	s := newTestServer(t, nil, tasks, &fakeBusySource{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plan?days=7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp planResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(resp.Events))
	}
	ev := resp.Events[0]
	if ev.TaskID != "t1" {
		t.Errorf("TaskID = %q, want t1", ev.TaskID)
	}
	if !ev.IsTemp {
		t.Error("IsTemp = false, want true")
	}
	if got := ev.End.Sub(ev.Start); got != 30*time.Minute {
		t.Errorf("event duration = %v, want 30m", got)
	}
	if len(resp.UnscheduledTaskIDs) != 0 {
		t.Errorf("unscheduled = %v, want none", resp.UnscheduledTaskIDs)
	}
}

func TestPlanInvalidRulesRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Rules.PriorityWeight = 1.5
	s := newTestServer(t, cfg, &fakeTaskSource{}, &fakeBusySource{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plan?days=7", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
	}
}

func TestPlanDefaultRequestIsCached(t *testing.T) {
	tasks := &fakeTaskSource{tasks: []model.Task{
		{ID: "t1", Title: "Task", DurationMinutes: 30},
	}}
	cfg := testConfig()
	cfg.Rules.RandomnessFactor = 0.5
	s := newTestServer(t, cfg, tasks, &fakeBusySource{})

	first := httptest.NewRecorder()
	s.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/plan", nil))
	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/plan", nil))

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d, %d", first.Code, second.Code)
	}
	// Jittered plans only look identical if the second hit the cache.
	if first.Body.String() != second.Body.String() {
		t.Error("second default plan differs from first, cache not used")
	}
}

func TestTasksPostThenGet(t *testing.T) {
	s := newTestServer(t, nil, &fakeTaskSource{}, &fakeBusySource{})

	body := `{"id":"t9","title":"Review PRs","duration_minutes":45,"priority":"high"}`
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got []taskDTO
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t9" || got[0].DurationMinutes != 45 {
		t.Errorf("tasks = %+v", got)
	}
}

func TestTasksPostRequiresIDAndTitle(t *testing.T) {
	s := newTestServer(t, nil, &fakeTaskSource{}, &fakeBusySource{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"title":"no id"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTaskDoneRemovesFromPlan(t *testing.T) {
	tasks := &fakeTaskSource{tasks: []model.Task{
		{ID: "t1", Title: "Task", DurationMinutes: 30},
	}}
	s := newTestServer(t, nil, tasks, &fakeBusySource{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tasks/done?id=t1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plan?days=7", nil))
	var resp planResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Events) != 0 {
		t.Errorf("events = %d after done, want 0", len(resp.Events))
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "plan", Password: "secret"}
	s := newTestServer(t, cfg, &fakeTaskSource{}, &fakeBusySource{})
	h := s.Handler()

	// /health stays open.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", rec.Code)
	}

	// API without credentials is rejected.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	// Correct credentials pass through.
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.SetBasicAuth("plan", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}

	// Wrong password is rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.SetBasicAuth("plan", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}
}
