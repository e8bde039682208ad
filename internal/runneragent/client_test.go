package runneragent

import (
	"context"
	"testing"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
)

func TestRunnerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RunnerConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: RunnerConfig{
				ServerURL: "ws://localhost:9077/ws",
				RunnerID:  "runner-1",
				Platform:  domain.PlatformLinux,
				MaxJobs:   4,
			},
			wantErr: false,
		},
		{
			name: "missing server URL",
			config: RunnerConfig{
				RunnerID: "runner-1",
				Platform: domain.PlatformLinux,
				MaxJobs:  4,
			},
			wantErr: true,
		},
		{
			name: "missing runner ID",
			config: RunnerConfig{
				ServerURL: "ws://localhost:9077/ws",
				Platform:  domain.PlatformLinux,
				MaxJobs:   4,
			},
			wantErr: true,
		},
		{
			name: "unknown platform",
			config: RunnerConfig{
				ServerURL: "ws://localhost:9077/ws",
				RunnerID:  "runner-1",
				Platform:  "macos",
				MaxJobs:   4,
			},
			wantErr: true,
		},
		{
			name: "invalid max jobs",
			config: RunnerConfig{
				ServerURL: "ws://localhost:9077/ws",
				RunnerID:  "runner-1",
				Platform:  domain.PlatformLinux,
				MaxJobs:   0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunner_JobTracking(t *testing.T) {
	config := RunnerConfig{
		ServerURL: "ws://localhost:9999/ws", // Won't connect
		RunnerID:  "test",
		Platform:  domain.PlatformLinux,
		MaxJobs:   2,
	}

	r, err := NewRunner(config)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.TrackJob("job-1", cancel)

	if !r.HasJob("job-1") {
		t.Error("HasJob(job-1) = false, want true")
	}

	r.CancelJob("job-1")

	select {
	case <-ctx.Done():
		// Expected
	case <-time.After(100 * time.Millisecond):
		t.Error("context was not cancelled")
	}

	if r.HasJob("job-1") {
		t.Error("HasJob(job-1) after cancel = true, want false")
	}
}

func TestRunner_ReconnectBackoff(t *testing.T) {
	delays := []time.Duration{
		calculateBackoff(0),
		calculateBackoff(1),
		calculateBackoff(2),
		calculateBackoff(10), // Should cap at max
	}

	if delays[0] != 1*time.Second {
		t.Errorf("backoff(0) = %v, want 1s", delays[0])
	}
	if delays[1] != 2*time.Second {
		t.Errorf("backoff(1) = %v, want 2s", delays[1])
	}
	if delays[2] != 4*time.Second {
		t.Errorf("backoff(2) = %v, want 4s", delays[2])
	}
	if delays[3] > 60*time.Second {
		t.Errorf("backoff(10) = %v, want <= 60s (capped)", delays[3])
	}
}

func TestPool_AcquireRelease(t *testing.T) {
	p := NewPool(2)

	if !p.Acquire() || !p.Acquire() {
		t.Fatal("expected two acquires to succeed")
	}
	if p.Acquire() {
		t.Error("third acquire should fail")
	}
	if p.Available() != 0 {
		t.Errorf("got available=%d, want 0", p.Available())
	}

	p.Release()
	if p.Available() != 1 {
		t.Errorf("got available=%d, want 1", p.Available())
	}

	// Releasing past capacity does not grow the pool
	p.Release()
	p.Release()
	if p.Available() != 2 {
		t.Errorf("got available=%d, want 2", p.Available())
	}
}

func TestPool_SlotsChangedCallback(t *testing.T) {
	p := NewPool(1)

	var seen []int
	p.SetOnSlotsChanged(func(available int) {
		seen = append(seen, available)
	})

	p.Acquire()
	p.Release()

	if len(seen) != 2 || seen[0] != 0 || seen[1] != 1 {
		t.Errorf("got callback values %v, want [0 1]", seen)
	}
}
