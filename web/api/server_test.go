package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runstore"
)

func TestListRunsHandler(t *testing.T) {
	store := &mockStore{
		runs: []runstore.RunSummary{
			{ID: "run-2", Event: domain.EventPush, Branch: "main", Status: domain.RunSucceeded},
			{ID: "run-1", Event: domain.EventPush, Branch: "main", Status: domain.RunFailed},
		},
	}

	server := NewServer(store, &mockTrigger{}, nil, ":8080")
	handler := server.listRunsHandler()

	req := httptest.NewRequest("GET", "/api/runs", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", w.Code)
	}

	var runs []RunSummaryResponse
	json.NewDecoder(w.Body).Decode(&runs)

	if len(runs) != 2 {
		t.Errorf("Run count = %d, want 2", len(runs))
	}
	if runs[0].ID != "run-2" {
		t.Errorf("First run = %s, want run-2", runs[0].ID)
	}
}

func TestGetRunHandler(t *testing.T) {
	now := time.Now()
	store := &mockStore{
		full: &domain.PipelineRun{
			ID:      "run-1",
			Trigger: domain.Trigger{Event: domain.EventPush, Branch: "main"},
			Status:  domain.RunFailed,
			Results: []domain.RunResult{
				{
					EnvironmentID: "windows-stable",
					Status:        domain.RunFailed,
					FailedStage:   "test",
					FailedStep:    "unit-tests",
					Steps: []domain.StepOutcome{
						{Stage: "test", Step: "unit-tests", Status: domain.StepFailed, ExitCode: 101},
					},
				},
			},
			StartedAt:  now,
			FinishedAt: now.Add(time.Minute),
		},
	}

	server := NewServer(store, &mockTrigger{}, nil, ":8080")
	handler := server.getRunHandler()

	req := httptest.NewRequest("GET", "/api/runs/run-1", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}

	var run RunResponse
	json.NewDecoder(w.Body).Decode(&run)

	if run.ID != "run-1" || run.Status != "failed" {
		t.Errorf("got %s/%s, want run-1/failed", run.ID, run.Status)
	}
	if len(run.Results) != 1 || run.Results[0].FailedStage != "test" {
		t.Errorf("results not preserved: %+v", run.Results)
	}
}

func TestGetRunHandlerNotFound(t *testing.T) {
	server := NewServer(&mockStore{}, &mockTrigger{}, nil, ":8080")
	handler := server.getRunHandler()

	req := httptest.NewRequest("GET", "/api/runs/missing", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", w.Code)
	}
}

func TestTriggerHandlerAccepted(t *testing.T) {
	trigger := &mockTrigger{accept: true}
	server := NewServer(&mockStore{}, trigger, nil, ":8080")
	go server.sseHub.Run()
	handler := server.triggerHandler()

	body := strings.NewReader(`{"event":"push","branch":"main"}`)
	req := httptest.NewRequest("POST", "/api/trigger", body)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("Status = %d, want 202", w.Code)
	}
	if trigger.got.Branch != "main" || trigger.got.Event != domain.EventPush {
		t.Errorf("trigger not forwarded: %+v", trigger.got)
	}
}

func TestTriggerHandlerIgnoredBranch(t *testing.T) {
	trigger := &mockTrigger{accept: false}
	server := NewServer(&mockStore{}, trigger, nil, ":8080")
	handler := server.triggerHandler()

	body := strings.NewReader(`{"event":"push","branch":"feature/x"}`)
	req := httptest.NewRequest("POST", "/api/trigger", body)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", w.Code)
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["status"] != "ignored" {
		t.Errorf("got status %q, want ignored", resp["status"])
	}
}

func TestTriggerHandlerRejectsMissingFields(t *testing.T) {
	server := NewServer(&mockStore{}, &mockTrigger{}, nil, ":8080")
	handler := server.triggerHandler()

	body := strings.NewReader(`{"event":"push"}`)
	req := httptest.NewRequest("POST", "/api/trigger", body)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	store := &mockStore{
		runs: []runstore.RunSummary{{ID: "run-1"}},
	}
	server := NewServer(store, &mockTrigger{state: domain.StateRunning}, nil, ":8080")
	handler := server.statusHandler()

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var status StatusResponse
	json.NewDecoder(w.Body).Decode(&status)

	if status.State != string(domain.StateRunning) {
		t.Errorf("State = %s, want running", status.State)
	}
	if status.Runs != 1 {
		t.Errorf("Runs = %d, want 1", status.Runs)
	}
}

type mockStore struct {
	runs []runstore.RunSummary
	full *domain.PipelineRun
}

func (m *mockStore) ListRuns(limit int) ([]runstore.RunSummary, error) {
	return m.runs, nil
}

func (m *mockStore) GetRun(id string) (*domain.PipelineRun, error) {
	if m.full != nil && m.full.ID == id {
		return m.full, nil
	}
	return nil, fmt.Errorf("run %s not found", id)
}

type mockTrigger struct {
	accept bool
	state  domain.PipelineState
	got    domain.Trigger
}

func (m *mockTrigger) Submit(t domain.Trigger) bool {
	m.got = t
	return m.accept
}

func (m *mockTrigger) State() domain.PipelineState {
	if m.state == "" {
		return domain.StateIdle
	}
	return m.state
}
