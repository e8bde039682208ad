package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runstore"
)

// EnvironmentView represents one environment's progress in the TUI
type EnvironmentView struct {
	ID           string
	Platform     domain.Platform
	Status       domain.RunStatus
	CurrentStage string
	CurrentStep  string
	StepsDone    int
	StepsFailed  int
	Started      time.Time
}

// RunnerView represents a connected runner in the TUI
type RunnerView struct {
	ID         string
	Platform   domain.Platform
	ActiveJobs int
	MaxJobs    int
}

// Model is the TUI application model
type Model struct {
	// Data
	state   domain.PipelineState
	branch  string
	envs    []*EnvironmentView
	history []runstore.RunSummary
	runners []RunnerView

	// UI state
	width       int
	height      int
	activeTab   int
	selectedRow int
	historyScroll int

	// Refresh
	lastRefresh time.Time
}

// ModelConfig holds initial data for the TUI model
type ModelConfig struct {
	Branch  string
	Envs    []*EnvironmentView
	History []runstore.RunSummary
	Runners []RunnerView
}

// NewModel creates a new TUI model
func NewModel(cfg ModelConfig) Model {
	return Model{
		state:     domain.StateIdle,
		branch:    cfg.Branch,
		envs:      cfg.Envs,
		history:   cfg.History,
		runners:   cfg.Runners,
		activeTab: 0,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg triggers a refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
