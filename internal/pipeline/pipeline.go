// Package pipeline defines the YAML pipeline definition: which repository
// events start a run and which environments, stages and steps execute.
// Definitions are loaded once and treated as read-only for a run's lifetime.
package pipeline

import (
	"fmt"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
)

// Step is a single external command invocation
type Step struct {
	Name string            `yaml:"name"`
	Run  string            `yaml:"run"`
	Env  map[string]string `yaml:"env,omitempty"`
}

// Stage is an ordered, fail-fast group of steps representing one quality gate
type Stage struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Environment binds a stage sequence to a platform/toolchain combination
type Environment struct {
	ID        string          `yaml:"id"`
	Platform  domain.Platform `yaml:"platform"`
	Toolchain string          `yaml:"toolchain"`
	Timeout   time.Duration   `yaml:"timeout,omitempty"`
	Stages    []Stage         `yaml:"stages"`
}

// Pipeline is the full pipeline definition
type Pipeline struct {
	On           []domain.EventKind `yaml:"on"`
	Branches     []string           `yaml:"branches"`
	Schedule     string             `yaml:"schedule,omitempty"`
	Environments []Environment      `yaml:"environments"`
}

// MatchesTrigger reports whether the trigger should produce a run: the
// event kind must be declared and the branch must be on the watch-list.
func (p *Pipeline) MatchesTrigger(t domain.Trigger) bool {
	declared := false
	for _, e := range p.On {
		if e == t.Event {
			declared = true
			break
		}
	}
	if !declared {
		return false
	}
	return t.Matches(p.Branches)
}

// Environment returns the environment with the given ID, or nil
func (p *Pipeline) Environment(id string) *Environment {
	for i := range p.Environments {
		if p.Environments[i].ID == id {
			return &p.Environments[i]
		}
	}
	return nil
}

// Validate checks structural invariants of the definition
func (p *Pipeline) Validate() error {
	if len(p.On) == 0 {
		return fmt.Errorf("pipeline declares no trigger events")
	}
	for _, e := range p.On {
		if e != domain.EventPush && e != domain.EventPullRequest {
			return fmt.Errorf("unknown trigger event %q", e)
		}
	}
	if len(p.Branches) == 0 {
		return fmt.Errorf("pipeline declares no watched branches")
	}
	if len(p.Environments) == 0 {
		return fmt.Errorf("pipeline declares no environments")
	}

	seen := make(map[string]bool, len(p.Environments))
	for _, env := range p.Environments {
		if env.ID == "" {
			return fmt.Errorf("environment with empty id")
		}
		if seen[env.ID] {
			return fmt.Errorf("duplicate environment id %q", env.ID)
		}
		seen[env.ID] = true

		if !env.Platform.Valid() {
			return fmt.Errorf("environment %s: unknown platform %q", env.ID, env.Platform)
		}
		if len(env.Stages) == 0 {
			return fmt.Errorf("environment %s: no stages", env.ID)
		}
		for _, stage := range env.Stages {
			if stage.Name == "" {
				return fmt.Errorf("environment %s: stage with empty name", env.ID)
			}
			if len(stage.Steps) == 0 {
				return fmt.Errorf("environment %s: stage %s has no steps", env.ID, stage.Name)
			}
			for _, step := range stage.Steps {
				if step.Run == "" {
					return fmt.Errorf("environment %s: stage %s: step %q has no command", env.ID, stage.Name, step.Name)
				}
			}
		}
	}
	return nil
}
