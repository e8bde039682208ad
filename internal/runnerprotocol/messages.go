// Package runnerprotocol defines message types for runner-coordinator
// communication. Messages flow over WebSocket connections; each runner
// advertises its platform so step jobs can be routed to a matching host.
package runnerprotocol

import (
	"encoding/json"

	"github.com/crossgate-ci/crossgate/internal/domain"
)

// Envelope wraps all messages with a type discriminator.
// When marshaling, Payload can be any message struct.
// When unmarshaling, use EnvelopeRaw for type-based dispatch.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EnvelopeRaw is used for receiving messages where the payload
// needs to be unmarshaled based on the message type.
type EnvelopeRaw struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalEnvelope creates an envelope with the given type and payload
func MarshalEnvelope(msgType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Type: msgType, Payload: payload})
}

// Runner -> Coordinator messages

// RegisterMessage sent when a runner first connects
type RegisterMessage struct {
	RunnerID string          `json:"runner_id"`
	Platform domain.Platform `json:"platform"`
	MaxJobs  int             `json:"max_jobs"`
}

// ReadyMessage sent when a runner has available step slots
type ReadyMessage struct {
	Slots int `json:"slots"`
}

// OutputMessage sent for streaming step output
type OutputMessage struct {
	JobID string `json:"job_id"`
	Data  string `json:"data"`
}

// CompleteMessage sent when a step finishes
type CompleteMessage struct {
	JobID      string `json:"job_id"`
	ExitCode   int    `json:"exit_code"`
	Output     string `json:"output"`
	DurationMs int64  `json:"duration_ms"`
}

// ErrorMessage sent when a step fails before completion
type ErrorMessage struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// Coordinator -> Runner messages

// StepJobMessage assigns one pipeline step to a runner
type StepJobMessage struct {
	JobID         string            `json:"job_id"`
	EnvironmentID string            `json:"environment_id"`
	Stage         string            `json:"stage"`
	Step          string            `json:"step"`
	Command       string            `json:"command"`
	Env           map[string]string `json:"env,omitempty"`
	Timeout       int               `json:"timeout_secs,omitempty"`
}

// CancelMessage requests step cancellation
type CancelMessage struct {
	JobID string `json:"job_id"`
}

// Message type constants
const (
	TypeRegister = "register"
	TypeReady    = "ready"
	TypeOutput   = "output"
	TypeComplete = "complete"
	TypeError    = "error"
	TypeStepJob  = "step_job"
	TypeCancel   = "cancel"
)
