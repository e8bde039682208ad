package runstore

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun() *domain.PipelineRun {
	now := time.Now().Truncate(time.Second)
	return &domain.PipelineRun{
		ID:      "run-1",
		Trigger: domain.Trigger{Event: domain.EventPush, Branch: "main"},
		Status:  domain.RunFailed,
		Results: []domain.RunResult{
			{
				EnvironmentID: "linux-default",
				Status:        domain.RunSucceeded,
				StartedAt:     now,
				FinishedAt:    now.Add(5 * time.Minute),
				Steps: []domain.StepOutcome{
					{Stage: "lint-check", Step: "clippy", Status: domain.StepSucceeded, Duration: time.Minute},
					{Stage: "test", Step: "unit-tests", Status: domain.StepSucceeded, Duration: 4 * time.Minute},
				},
			},
			{
				EnvironmentID: "windows-stable",
				Status:        domain.RunFailed,
				FailedStage:   "test",
				FailedStep:    "unit-tests",
				StartedAt:     now,
				FinishedAt:    now.Add(2 * time.Minute),
				Steps: []domain.StepOutcome{
					{Stage: "build-check", Step: "build", Status: domain.StepSucceeded},
					{Stage: "test", Step: "unit-tests", Status: domain.StepFailed, ExitCode: 101,
						Output: "test failed: odb::round_trip\n"},
				},
			},
		},
		StartedAt:  now,
		FinishedAt: now.Add(5 * time.Minute),
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveRun(sampleRun()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := store.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.Status != domain.RunFailed {
		t.Errorf("got status %s, want failed", got.Status)
	}
	if got.Trigger.Event != domain.EventPush || got.Trigger.Branch != "main" {
		t.Errorf("trigger not preserved: %+v", got.Trigger)
	}
	if len(got.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(got.Results))
	}

	var win *domain.RunResult
	for i := range got.Results {
		if got.Results[i].EnvironmentID == "windows-stable" {
			win = &got.Results[i]
		}
	}
	if win == nil {
		t.Fatal("windows-stable result missing")
	}
	if win.FailedStage != "test" || win.FailedStep != "unit-tests" {
		t.Errorf("failure location not preserved: %s/%s", win.FailedStage, win.FailedStep)
	}
	if len(win.Steps) != 2 {
		t.Fatalf("got %d step outcomes, want 2", len(win.Steps))
	}
	failed := win.Steps[1]
	if failed.ExitCode != 101 {
		t.Errorf("got exit code %d, want 101", failed.ExitCode)
	}
	if !strings.Contains(failed.Output, "odb::round_trip") {
		t.Errorf("captured output not preserved: %q", failed.Output)
	}
	if failed.Status != domain.StepFailed {
		t.Errorf("got step status %s, want failed", failed.Status)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetRun("missing"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := sampleRun()
		run.ID = id
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		run.FinishedAt = run.StartedAt.Add(time.Minute)
		if err := store.SaveRun(run); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	// Newest first
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("got order %s, %s; want run-c, run-b", runs[0].ID, runs[1].ID)
	}
	if runs[0].Status != domain.RunFailed {
		t.Errorf("got status %s, want failed", runs[0].Status)
	}
}

func TestSaveRunIsWriteOnce(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveRun(sampleRun()); err != nil {
		t.Fatalf("first SaveRun failed: %v", err)
	}
	if err := store.SaveRun(sampleRun()); err == nil {
		t.Fatal("second SaveRun with same id should fail")
	}
}
