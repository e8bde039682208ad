package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runnerpool"
	"github.com/crossgate-ci/crossgate/internal/runstore"
)

// RunSummaryResponse is the API response for a run listing row
type RunSummaryResponse struct {
	ID         string `json:"id"`
	Event      string `json:"event"`
	Branch     string `json:"branch"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// StepOutcomeResponse is the API response for one step outcome
type StepOutcomeResponse struct {
	Stage    string `json:"stage"`
	Step     string `json:"step"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
	Duration string `json:"duration"`
}

// RunResultResponse is the API response for one environment's result
type RunResultResponse struct {
	EnvironmentID string                `json:"environment_id"`
	Status        string                `json:"status"`
	FailedStage   string                `json:"failed_stage,omitempty"`
	FailedStep    string                `json:"failed_step,omitempty"`
	Steps         []StepOutcomeResponse `json:"steps"`
}

// RunResponse is the API response for a full run
type RunResponse struct {
	ID         string              `json:"id"`
	Event      string              `json:"event"`
	Branch     string              `json:"branch"`
	Status     string              `json:"status"`
	StartedAt  string              `json:"started_at"`
	FinishedAt string              `json:"finished_at"`
	Results    []RunResultResponse `json:"results"`
}

// StatusResponse is the API response for overall status
type StatusResponse struct {
	State   string `json:"state"`
	Runs    int    `json:"runs"`
	Runners int    `json:"runners"`
}

// TriggerRequest is a manual trigger submission
type TriggerRequest struct {
	Event  string `json:"event"`
	Branch string `json:"branch"`
}

func summaryToResponse(r runstore.RunSummary) RunSummaryResponse {
	return RunSummaryResponse{
		ID:         r.ID,
		Event:      string(r.Event),
		Branch:     r.Branch,
		Status:     string(r.Status),
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		FinishedAt: r.FinishedAt.Format(time.RFC3339),
	}
}

func runToResponse(run *domain.PipelineRun) RunResponse {
	resp := RunResponse{
		ID:         run.ID,
		Event:      string(run.Trigger.Event),
		Branch:     run.Trigger.Branch,
		Status:     string(run.Status),
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		FinishedAt: run.FinishedAt.Format(time.RFC3339),
	}
	for _, r := range run.Results {
		rr := RunResultResponse{
			EnvironmentID: r.EnvironmentID,
			Status:        string(r.Status),
			FailedStage:   r.FailedStage,
			FailedStep:    r.FailedStep,
		}
		for _, s := range r.Steps {
			rr.Steps = append(rr.Steps, StepOutcomeResponse{
				Stage:    s.Stage,
				Step:     s.Step,
				Status:   string(s.Status),
				ExitCode: s.ExitCode,
				Output:   s.Output,
				Duration: s.Duration.Round(time.Millisecond).String(),
			})
		}
		resp.Results = append(resp.Results, rr)
	}
	return resp
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		runs, err := s.store.ListRuns(0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		status := StatusResponse{
			State: string(s.trigger.State()),
			Runs:  len(runs),
		}
		if s.coordinator != nil {
			status.Runners = s.coordinator.Registry().Count()
		}

		writeJSON(w, status)
	}
}

func (s *Server) listRunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		runs, err := s.store.ListRuns(50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]RunSummaryResponse, len(runs))
		for i, run := range runs {
			responses[i] = summaryToResponse(run)
		}

		writeJSON(w, responses)
	}
}

func (s *Server) getRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if id == "" {
			writeError(w, http.StatusBadRequest, "run ID required")
			return
		}

		run, err := s.store.GetRun(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		writeJSON(w, runToResponse(run))
	}
}

func (s *Server) listRunnersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if s.coordinator == nil {
			writeJSON(w, []runnerpool.RunnerStatus{})
			return
		}

		writeJSON(w, s.coordinator.RunnerStatuses())
	}
}

func (s *Server) triggerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req TriggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Event == "" || req.Branch == "" {
			writeError(w, http.StatusBadRequest, "event and branch are required")
			return
		}

		trigger := domain.Trigger{Event: domain.EventKind(req.Event), Branch: req.Branch}
		accepted := s.trigger.Submit(trigger)

		if !accepted {
			// Branch not on the watch-list or event not declared: no run
			writeJSON(w, map[string]string{"status": "ignored"})
			return
		}

		s.Broadcast(SSEEvent{Type: "run_triggered", Data: map[string]string{
			"event":  req.Event,
			"branch": req.Branch,
		}})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "triggered"})
	}
}
