package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runstore"
)

// EnvironmentStartedMsg is sent when an environment begins executing
type EnvironmentStartedMsg struct {
	EnvironmentID string
}

// StepFinishedMsg is sent when a step completes in any environment
type StepFinishedMsg struct {
	EnvironmentID string
	Stage         string
	Step          string
	Status        domain.StepStatus
}

// EnvironmentFinishedMsg is sent when an environment's verdict is final
type EnvironmentFinishedMsg struct {
	EnvironmentID string
	Status        domain.RunStatus
}

// RunFinalizedMsg is sent when the aggregate verdict is final
type RunFinalizedMsg struct {
	Status domain.RunStatus
}

// RunStartedMsg is sent when a trigger produces a new run
type RunStartedMsg struct {
	Branch string
	Envs   []*EnvironmentView
}

// HistoryMsg refreshes the run history list
type HistoryMsg []runstore.RunSummary

// RunnersMsg refreshes the connected runner list
type RunnersMsg []RunnerView

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % 2
			m.selectedRow = 0
			m.historyScroll = 0
		case "j", "down":
			m.selectedRow++
			if m.activeTab == 1 {
				if m.selectedRow >= len(m.history) {
					m.selectedRow = len(m.history) - 1
				}
				maxVisible := 15
				if m.selectedRow >= m.historyScroll+maxVisible {
					m.historyScroll = m.selectedRow - maxVisible + 1
				}
			}
		case "k", "up":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			if m.activeTab == 1 && m.selectedRow < m.historyScroll {
				m.historyScroll = m.selectedRow
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.lastRefresh = time.Time(msg)
		return m, tickCmd()

	case RunStartedMsg:
		m.state = domain.StateRunning
		if msg.Branch != "" {
			m.branch = msg.Branch
		}
		if msg.Envs != nil {
			m.envs = msg.Envs
		} else {
			for _, env := range m.envs {
				env.Status = domain.RunPending
				env.CurrentStage = ""
				env.CurrentStep = ""
				env.StepsDone = 0
				env.StepsFailed = 0
			}
		}

	case EnvironmentStartedMsg:
		for _, env := range m.envs {
			if env.ID == msg.EnvironmentID {
				env.Status = domain.RunExecuting
			}
		}

	case StepFinishedMsg:
		for _, env := range m.envs {
			if env.ID != msg.EnvironmentID {
				continue
			}
			env.CurrentStage = msg.Stage
			env.CurrentStep = msg.Step
			env.StepsDone++
			if msg.Status == domain.StepFailed {
				env.StepsFailed++
			}
		}

	case EnvironmentFinishedMsg:
		for _, env := range m.envs {
			if env.ID == msg.EnvironmentID {
				env.Status = msg.Status
			}
		}

	case RunFinalizedMsg:
		m.state = domain.StateIdle

	case HistoryMsg:
		m.history = msg

	case RunnersMsg:
		m.runners = msg
	}

	return m, nil
}
