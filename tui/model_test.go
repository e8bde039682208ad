package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runstore"
)

func TestNewModel(t *testing.T) {
	envs := []*EnvironmentView{
		{ID: "linux-default", Platform: domain.PlatformLinux, Status: domain.RunPending},
		{ID: "windows-stable", Platform: domain.PlatformWindows, Status: domain.RunPending},
	}

	model := NewModel(ModelConfig{Branch: "main", Envs: envs})

	if model.state != domain.StateIdle {
		t.Errorf("state = %s, want idle", model.state)
	}
	if len(model.envs) != 2 {
		t.Errorf("envs count = %d, want 2", len(model.envs))
	}
	if model.activeTab != 0 {
		t.Errorf("activeTab = %d, want 0", model.activeTab)
	}
}

func TestModel_TabSwitching(t *testing.T) {
	model := NewModel(ModelConfig{Branch: "main"})
	model.width = 100
	model.height = 40

	newModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = newModel.(Model)

	if model.activeTab != 1 {
		t.Errorf("after tab: activeTab = %d, want 1", model.activeTab)
	}

	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = newModel.(Model)

	if model.activeTab != 0 {
		t.Errorf("after wrap: activeTab = %d, want 0", model.activeTab)
	}
}

func TestModel_QuitCommands(t *testing.T) {
	model := NewModel(ModelConfig{Branch: "main"})
	model.width = 100
	model.height = 40

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("'q' should return a quit command")
	}

	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Error("ctrl+c should return a quit command")
	}
}

func TestModel_WindowResize(t *testing.T) {
	model := NewModel(ModelConfig{Branch: "main"})

	newModel, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model = newModel.(Model)

	if model.width != 120 || model.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", model.width, model.height)
	}
}

func TestModel_StepFinishedUpdatesProgress(t *testing.T) {
	envs := []*EnvironmentView{
		{ID: "linux-default", Platform: domain.PlatformLinux, Status: domain.RunExecuting},
	}
	model := NewModel(ModelConfig{Branch: "main", Envs: envs})

	newModel, _ := model.Update(StepFinishedMsg{
		EnvironmentID: "linux-default",
		Stage:         "lint-check",
		Step:          "clippy",
		Status:        domain.StepSucceeded,
	})
	model = newModel.(Model)

	env := model.envs[0]
	if env.StepsDone != 1 {
		t.Errorf("StepsDone = %d, want 1", env.StepsDone)
	}
	if env.CurrentStage != "lint-check" || env.CurrentStep != "clippy" {
		t.Errorf("progress = %s/%s, want lint-check/clippy", env.CurrentStage, env.CurrentStep)
	}

	newModel, _ = model.Update(StepFinishedMsg{
		EnvironmentID: "linux-default",
		Stage:         "format-check",
		Step:          "rustfmt",
		Status:        domain.StepFailed,
	})
	model = newModel.(Model)

	if model.envs[0].StepsFailed != 1 {
		t.Errorf("StepsFailed = %d, want 1", model.envs[0].StepsFailed)
	}
}

func TestModel_EnvironmentFinished(t *testing.T) {
	envs := []*EnvironmentView{
		{ID: "linux-default", Status: domain.RunExecuting},
		{ID: "windows-stable", Status: domain.RunExecuting},
	}
	model := NewModel(ModelConfig{Branch: "main", Envs: envs})

	newModel, _ := model.Update(EnvironmentFinishedMsg{
		EnvironmentID: "windows-stable",
		Status:        domain.RunFailed,
	})
	model = newModel.(Model)

	if model.envs[1].Status != domain.RunFailed {
		t.Errorf("windows status = %s, want failed", model.envs[1].Status)
	}
	// Sibling untouched
	if model.envs[0].Status != domain.RunExecuting {
		t.Errorf("linux status = %s, want executing", model.envs[0].Status)
	}
}

func TestModel_EnvironmentStarted(t *testing.T) {
	envs := []*EnvironmentView{
		{ID: "linux-default", Status: domain.RunPending},
	}
	model := NewModel(ModelConfig{Branch: "main", Envs: envs})

	newModel, _ := model.Update(EnvironmentStartedMsg{EnvironmentID: "linux-default"})
	model = newModel.(Model)

	if model.envs[0].Status != domain.RunExecuting {
		t.Errorf("status = %s, want executing", model.envs[0].Status)
	}
}

func TestModel_RunStartedResetsProgress(t *testing.T) {
	envs := []*EnvironmentView{
		{ID: "linux-default", Status: domain.RunFailed,
			CurrentStage: "test", CurrentStep: "unit-tests", StepsDone: 4, StepsFailed: 1},
	}
	model := NewModel(ModelConfig{Branch: "main", Envs: envs})

	// A start message without environment views keeps the declared list
	// and resets its progress
	newModel, _ := model.Update(RunStartedMsg{Branch: "main"})
	model = newModel.(Model)

	env := model.envs[0]
	if env.Status != domain.RunPending || env.StepsDone != 0 || env.StepsFailed != 0 {
		t.Errorf("env not reset: %+v", env)
	}
	if env.CurrentStage != "" || env.CurrentStep != "" {
		t.Errorf("progress not cleared: %+v", env)
	}
}

func TestModel_RunLifecycle(t *testing.T) {
	model := NewModel(ModelConfig{Branch: "main"})

	newModel, _ := model.Update(RunStartedMsg{
		Branch: "main",
		Envs: []*EnvironmentView{
			{ID: "linux-default", Status: domain.RunExecuting},
		},
	})
	model = newModel.(Model)

	if model.state != domain.StateRunning {
		t.Errorf("state = %s, want running", model.state)
	}

	newModel, _ = model.Update(RunFinalizedMsg{Status: domain.RunSucceeded})
	model = newModel.(Model)

	if model.state != domain.StateIdle {
		t.Errorf("state after finalize = %s, want idle", model.state)
	}
}

func TestModel_ViewRendersEnvironments(t *testing.T) {
	envs := []*EnvironmentView{
		{ID: "linux-default", Platform: domain.PlatformLinux, Status: domain.RunExecuting,
			CurrentStage: "test", CurrentStep: "unit-tests", StepsDone: 3},
		{ID: "windows-stable", Platform: domain.PlatformWindows, Status: domain.RunFailed},
	}
	model := NewModel(ModelConfig{Branch: "main", Envs: envs})
	model.width = 120
	model.height = 40

	out := model.View()

	if !strings.Contains(out, "linux-default") || !strings.Contains(out, "windows-stable") {
		t.Errorf("environments missing from view:\n%s", out)
	}
	if !strings.Contains(out, "test/unit-tests") {
		t.Errorf("current step missing from view:\n%s", out)
	}
}

func TestModel_ViewRendersHistory(t *testing.T) {
	model := NewModel(ModelConfig{
		Branch: "main",
		History: []runstore.RunSummary{
			{ID: "run-1", Event: domain.EventPush, Branch: "main", Status: domain.RunSucceeded},
		},
	})
	model.width = 120
	model.height = 40
	model.activeTab = 1

	out := model.View()

	if !strings.Contains(out, "run-1") {
		t.Errorf("history row missing from view:\n%s", out)
	}
}

func TestModel_HistoryNavigation(t *testing.T) {
	model := NewModel(ModelConfig{
		Branch: "main",
		History: []runstore.RunSummary{
			{ID: "run-1"}, {ID: "run-2"},
		},
	})
	model.width = 100
	model.height = 40
	model.activeTab = 1

	newModel, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model = newModel.(Model)

	if model.selectedRow != 1 {
		t.Errorf("selectedRow = %d, want 1", model.selectedRow)
	}

	// Cannot navigate past the last row
	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model = newModel.(Model)

	if model.selectedRow != 1 {
		t.Errorf("selectedRow = %d, want 1 (clamped)", model.selectedRow)
	}

	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	model = newModel.(Model)

	if model.selectedRow != 0 {
		t.Errorf("selectedRow = %d, want 0", model.selectedRow)
	}
}
