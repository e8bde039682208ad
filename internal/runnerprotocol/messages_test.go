package runnerprotocol

import (
	"encoding/json"
	"testing"

	"github.com/crossgate-ci/crossgate/internal/domain"
)

func TestEnvelopeDispatch(t *testing.T) {
	data, err := MarshalEnvelope(TypeStepJob, StepJobMessage{
		JobID:         "job-1",
		EnvironmentID: "windows-stable",
		Stage:         "build-check",
		Step:          "build",
		Command:       "cargo build --all-targets",
		Env:           map[string]string{"CARGO_TERM_COLOR": "never"},
		Timeout:       600,
	})
	if err != nil {
		t.Fatalf("MarshalEnvelope failed: %v", err)
	}

	var raw EnvelopeRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if raw.Type != TypeStepJob {
		t.Fatalf("got type %q, want %q", raw.Type, TypeStepJob)
	}

	var job StepJobMessage
	if err := json.Unmarshal(raw.Payload, &job); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if job.EnvironmentID != "windows-stable" || job.Stage != "build-check" {
		t.Errorf("payload not preserved: %+v", job)
	}
	if job.Env["CARGO_TERM_COLOR"] != "never" {
		t.Errorf("env not preserved: %v", job.Env)
	}
}

func TestRegisterCarriesPlatform(t *testing.T) {
	data, err := MarshalEnvelope(TypeRegister, RegisterMessage{
		RunnerID: "win-runner-1",
		Platform: domain.PlatformWindows,
		MaxJobs:  2,
	})
	if err != nil {
		t.Fatalf("MarshalEnvelope failed: %v", err)
	}

	var raw EnvelopeRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	var reg RegisterMessage
	if err := json.Unmarshal(raw.Payload, &reg); err != nil {
		t.Fatal(err)
	}
	if reg.Platform != domain.PlatformWindows {
		t.Errorf("got platform %q, want windows", reg.Platform)
	}
}

func TestEnvelopeWithoutPayload(t *testing.T) {
	data, err := MarshalEnvelope(TypeReady, nil)
	if err != nil {
		t.Fatalf("MarshalEnvelope failed: %v", err)
	}
	var raw EnvelopeRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw.Type != TypeReady {
		t.Errorf("got type %q, want ready", raw.Type)
	}
	if len(raw.Payload) != 0 {
		t.Errorf("expected empty payload, got %s", raw.Payload)
	}
}
