// Package runneragent implements the remote runner: a long-lived agent
// that connects to the coordinator over WebSocket, advertises its platform
// and capacity, and executes assigned pipeline steps with the local
// step executor.
package runneragent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runnerprotocol"
	"github.com/crossgate-ci/crossgate/internal/stepexec"
	"github.com/gorilla/websocket"
)

// Backoff constants for reconnection
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2
)

// calculateBackoff returns the delay for a given attempt number using exponential backoff
func calculateBackoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= backoffFactor
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// RunnerConfig configures the runner agent
type RunnerConfig struct {
	ServerURL string
	RunnerID  string
	Platform  domain.Platform
	MaxJobs   int
	WorkDir   string
	Debug     bool
}

// Validate checks the config is valid
func (c *RunnerConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.RunnerID == "" {
		return fmt.Errorf("runner_id is required")
	}
	if !c.Platform.Valid() {
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	if c.MaxJobs <= 0 {
		return fmt.Errorf("max_jobs must be positive")
	}
	return nil
}

// Runner is a step agent that connects to a coordinator
type Runner struct {
	config   RunnerConfig
	pool     *Pool
	executor *stepexec.Executor
	conn     *websocket.Conn
	mu       sync.Mutex

	// For graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc

	// Job tracking for cancellation
	jobsMu sync.Mutex
	jobs   map[string]context.CancelFunc
}

// NewRunner creates a new runner agent
func NewRunner(config RunnerConfig) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		config: config,
		pool:   NewPool(config.MaxJobs),
		executor: stepexec.New(stepexec.Config{
			WorkDir: config.WorkDir,
			Debug:   config.Debug,
		}),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]context.CancelFunc),
	}, nil
}

// pingWait is how long we wait for a ping from the coordinator before timing out
const pingWait = 90 * time.Second

// writeWait is time allowed to write a control message
const writeWait = 10 * time.Second

// Connect establishes the connection to the coordinator and registers
func (r *Runner) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(r.config.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pingWait))
		// Send pong response (must do this since we override the default handler)
		deadline := time.Now().Add(writeWait)
		return conn.WriteControl(websocket.PongMessage, []byte(appData), deadline)
	})

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	return r.send(runnerprotocol.TypeRegister, runnerprotocol.RegisterMessage{
		RunnerID: r.config.RunnerID,
		Platform: r.config.Platform,
		MaxJobs:  r.config.MaxJobs,
	})
}

// Run starts the agent loop
func (r *Runner) Run() error {
	// Send initial ready message
	if err := r.sendReady(); err != nil {
		return err
	}

	for {
		select {
		case <-r.ctx.Done():
			return nil
		default:
		}

		_, message, err := r.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		// Extend read deadline on any message received
		r.conn.SetReadDeadline(time.Now().Add(pingWait))

		var env runnerprotocol.EnvelopeRaw
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("[runner] invalid message: %v", err)
			continue
		}

		switch env.Type {
		case runnerprotocol.TypeStepJob:
			var job runnerprotocol.StepJobMessage
			if err := json.Unmarshal(env.Payload, &job); err != nil {
				log.Printf("[runner] invalid step job: %v", err)
				continue
			}
			go r.handleJob(job)

		case runnerprotocol.TypeCancel:
			var cancel runnerprotocol.CancelMessage
			if err := json.Unmarshal(env.Payload, &cancel); err != nil {
				log.Printf("[runner] invalid cancel message: %v", err)
				continue
			}
			log.Printf("[runner] cancelling job %s", cancel.JobID)
			r.CancelJob(cancel.JobID)
		}
	}
}

func (r *Runner) handleJob(job runnerprotocol.StepJobMessage) {
	if !r.pool.Acquire() {
		r.send(runnerprotocol.TypeError, runnerprotocol.ErrorMessage{
			JobID:   job.JobID,
			Message: "no slots available",
		})
		return
	}
	defer func() {
		r.pool.Release()
		r.UntrackJob(job.JobID)
		r.sendReady()
	}()

	timeout := time.Duration(job.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Minute
	}

	ctx, cancel := context.WithTimeout(r.ctx, timeout)
	defer cancel()

	// Track this job for cancellation
	r.TrackJob(job.JobID, cancel)

	log.Printf("[runner] running %s/%s for environment %s", job.Stage, job.Step, job.EnvironmentID)

	outcome := r.executor.Run(ctx, stepexec.Spec{
		Stage:   job.Stage,
		Name:    job.Step,
		Command: job.Command,
		Env:     job.Env,
	}, func(line string) {
		r.send(runnerprotocol.TypeOutput, runnerprotocol.OutputMessage{
			JobID: job.JobID,
			Data:  line,
		})
	})

	r.send(runnerprotocol.TypeComplete, runnerprotocol.CompleteMessage{
		JobID:      job.JobID,
		ExitCode:   outcome.ExitCode,
		Output:     outcome.Output,
		DurationMs: outcome.Duration.Milliseconds(),
	})
}

func (r *Runner) sendReady() error {
	return r.send(runnerprotocol.TypeReady, runnerprotocol.ReadyMessage{
		Slots: r.pool.Available(),
	})
}

func (r *Runner) send(msgType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return fmt.Errorf("not connected")
	}
	data, err := runnerprotocol.MarshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

// Stop gracefully shuts down the runner
func (r *Runner) Stop() {
	r.cancel()
	r.mu.Lock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	r.mu.Unlock()
}

// RunWithReconnect runs the agent with automatic reconnection
func (r *Runner) RunWithReconnect() error {
	attempt := 0

	for {
		select {
		case <-r.ctx.Done():
			return nil
		default:
		}

		err := r.Connect()
		if err != nil {
			delay := calculateBackoff(attempt)
			log.Printf("[runner] connection failed: %v, retrying in %v", err, delay)
			attempt++

			select {
			case <-r.ctx.Done():
				return nil
			case <-time.After(delay):
				continue
			}
		}

		// Connected - reset backoff
		attempt = 0
		log.Printf("[runner] connected to coordinator")

		err = r.Run()

		// Close the connection before reconnecting to avoid leaking file descriptors
		r.mu.Lock()
		if r.conn != nil {
			r.conn.Close()
			r.conn = nil
		}
		r.mu.Unlock()

		if err != nil {
			log.Printf("[runner] disconnected: %v", err)
		}

		select {
		case <-r.ctx.Done():
			return nil
		default:
			// Will reconnect
		}
	}
}

// TrackJob registers a job's cancel function for later cancellation
func (r *Runner) TrackJob(jobID string, cancel context.CancelFunc) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	r.jobs[jobID] = cancel
}

// UntrackJob removes a job from tracking
func (r *Runner) UntrackJob(jobID string) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	delete(r.jobs, jobID)
}

// HasJob checks if a job is being tracked
func (r *Runner) HasJob(jobID string) bool {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	_, ok := r.jobs[jobID]
	return ok
}

// CancelJob cancels a running job
func (r *Runner) CancelJob(jobID string) {
	r.jobsMu.Lock()
	cancel, ok := r.jobs[jobID]
	if ok {
		delete(r.jobs, jobID)
	}
	r.jobsMu.Unlock()

	if ok && cancel != nil {
		cancel()
	}
}
