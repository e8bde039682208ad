package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/orchestrator"
)

// EnvFactory builds fresh environment views when a run starts. The event
// stream carries only identifiers, so the caller supplies the declared
// environment list.
type EnvFactory func() []*EnvironmentView

// StreamEvents consumes the serve daemon's SSE endpoint and forwards run
// progress to the program via send. Returns when the stream closes or ctx
// is cancelled; the caller decides whether to reconnect.
func StreamEvents(ctx context.Context, url string, envs EnvFactory, send func(tea.Msg)) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data.WriteString(strings.TrimPrefix(line, "data: "))
			continue
		}
		if line != "" {
			continue
		}
		if data.Len() == 0 {
			continue
		}
		if msg := decodeEvent(data.String(), envs); msg != nil {
			send(msg)
		}
		data.Reset()
	}
	return scanner.Err()
}

// sseEnvelope mirrors the wire shape of the /api/events payload
type sseEnvelope struct {
	Type string             `json:"type"`
	Data orchestrator.Event `json:"data"`
}

func decodeEvent(raw string, envs EnvFactory) tea.Msg {
	var env sseEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil
	}

	ev := env.Data
	switch env.Type {
	case orchestrator.EventRunStarted:
		msg := RunStartedMsg{}
		if ev.Trigger != nil {
			msg.Branch = ev.Trigger.Branch
		}
		if envs != nil {
			msg.Envs = envs()
		}
		return msg
	case orchestrator.EventEnvironmentStarted:
		return EnvironmentStartedMsg{EnvironmentID: ev.EnvironmentID}
	case orchestrator.EventStepFinished:
		return StepFinishedMsg{
			EnvironmentID: ev.EnvironmentID,
			Stage:         ev.Stage,
			Step:          ev.Step,
			Status:        domain.StepStatus(ev.Status),
		}
	case orchestrator.EventEnvironmentFinished:
		return EnvironmentFinishedMsg{
			EnvironmentID: ev.EnvironmentID,
			Status:        domain.RunStatus(ev.Status),
		}
	case orchestrator.EventRunFinalized:
		return RunFinalizedMsg{Status: domain.RunStatus(ev.Status)}
	}
	return nil
}

// runnerStatusPage mirrors the coordinator's /status payload
type runnerStatusPage struct {
	Runners []struct {
		ID         string `json:"id"`
		Platform   string `json:"platform"`
		MaxJobs    int    `json:"max_jobs"`
		ActiveJobs int    `json:"active_jobs"`
	} `json:"runners"`
}

// FetchRunners reads the coordinator's status endpoint once
func FetchRunners(ctx context.Context, url string) ([]RunnerView, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page runnerStatusPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, err
	}

	views := make([]RunnerView, 0, len(page.Runners))
	for _, r := range page.Runners {
		views = append(views, RunnerView{
			ID:         r.ID,
			Platform:   domain.Platform(r.Platform),
			ActiveJobs: r.ActiveJobs,
			MaxJobs:    r.MaxJobs,
		})
	}
	return views, nil
}

// PollRunners periodically feeds RunnersMsg updates to the program until
// ctx is cancelled. Fetch failures are skipped silently so a coordinator
// restart only pauses the panel.
func PollRunners(ctx context.Context, url string, interval time.Duration, send func(tea.Msg)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if views, err := FetchRunners(ctx, url); err == nil {
				send(RunnersMsg(views))
			}
		}
	}
}
