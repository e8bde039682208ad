package domain

// EventKind identifies the kind of repository event that can start a run
type EventKind string

const (
	EventPush        EventKind = "push"
	EventPullRequest EventKind = "pull_request"
)

// StepStatus represents the terminal status of a single step
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
)

// RunStatus represents the execution state of an environment run
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunExecuting RunStatus = "executing"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status is a final verdict
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// PipelineState represents the orchestrator's lifecycle state
type PipelineState string

const (
	StateIdle      PipelineState = "idle"
	StateTriggered PipelineState = "triggered"
	StateRunning   PipelineState = "running"
	StateFinalized PipelineState = "finalized"
)

// Platform identifies the runner platform an environment is bound to
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
)

// Valid reports whether the platform is one crossgate knows how to schedule
func (p Platform) Valid() bool {
	return p == PlatformLinux || p == PlatformWindows
}
