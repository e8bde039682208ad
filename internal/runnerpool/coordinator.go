package runnerpool

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runnerprotocol"
	"github.com/gorilla/websocket"
)

// CoordinatorConfig configures the coordinator
type CoordinatorConfig struct {
	Port              int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// Coordinator accepts runner connections and dispatches step jobs
type Coordinator struct {
	config     CoordinatorConfig
	registry   *Registry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader

	server *http.Server

	// Output accumulator for streaming output from runners
	outputMu     sync.Mutex
	outputBuffer map[string]*strings.Builder
}

// NewCoordinator creates a new coordinator
func NewCoordinator(config CoordinatorConfig, registry *Registry, dispatcher *Dispatcher) *Coordinator {
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = 90 * time.Second // allow missing 2 heartbeats before disconnect
	}

	c := &Coordinator{
		config:     config,
		registry:   registry,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		outputBuffer: make(map[string]*strings.Builder),
	}

	c.dispatcher.SetSendFunc(c.sendJobToRunner)
	c.dispatcher.SetCancelFunc(c.sendCancelToRunner)

	return c
}

// Registry returns the runner registry
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Dispatcher returns the step dispatcher
func (c *Coordinator) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// HandleWebSocket handles incoming WebSocket connections from runners
func (c *Coordinator) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[coordinator] upgrade failed: %v", err)
		return
	}

	go c.handleRunnerConnection(conn)
}

func (c *Coordinator) handleRunnerConnection(conn *websocket.Conn) {
	var runnerID string
	defer func() {
		conn.Close()
		if runnerID != "" {
			c.registry.Unregister(runnerID)
			c.dispatcher.RequeueRunnerJobs(runnerID)
			c.dispatcher.TryDispatch()
			log.Printf("[coordinator] runner %s disconnected", runnerID)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatTimeout))
		if r := c.registry.Get(runnerID); r != nil {
			r.SetLastHeartbeat(time.Now())
		}
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[coordinator] read error: %v", err)
			}
			return
		}

		// Extend read deadline on any message received
		conn.SetReadDeadline(time.Now().Add(c.config.HeartbeatTimeout))

		var env runnerprotocol.EnvelopeRaw
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("[coordinator] invalid message: %v", err)
			continue
		}

		switch env.Type {
		case runnerprotocol.TypeRegister:
			var reg runnerprotocol.RegisterMessage
			if err := json.Unmarshal(env.Payload, &reg); err != nil {
				log.Printf("[coordinator] invalid register: %v", err)
				continue
			}
			if !reg.Platform.Valid() {
				log.Printf("[coordinator] runner %s rejected: unknown platform %q", reg.RunnerID, reg.Platform)
				return
			}
			runnerID = reg.RunnerID
			c.registry.Register(&ConnectedRunner{
				ID:       reg.RunnerID,
				Platform: reg.Platform,
				MaxJobs:  reg.MaxJobs,
				Slots:    reg.MaxJobs,
				Conn:     conn,
			})
			log.Printf("[coordinator] runner %s registered (platform=%s max_jobs=%d)", reg.RunnerID, reg.Platform, reg.MaxJobs)
			c.dispatcher.TryDispatch()

		case runnerprotocol.TypeReady:
			var ready runnerprotocol.ReadyMessage
			if err := json.Unmarshal(env.Payload, &ready); err != nil {
				log.Printf("[coordinator] failed to unmarshal %s message: %v", env.Type, err)
				continue
			}
			if r := c.registry.Get(runnerID); r != nil {
				r.UpdateSlots(ready.Slots)
				c.dispatcher.TryDispatch()
			}

		case runnerprotocol.TypeOutput:
			var output runnerprotocol.OutputMessage
			if err := json.Unmarshal(env.Payload, &output); err != nil {
				log.Printf("[coordinator] failed to unmarshal %s message: %v", env.Type, err)
				continue
			}
			c.AccumulateOutput(output.JobID, output.Data)

		case runnerprotocol.TypeComplete:
			var complete runnerprotocol.CompleteMessage
			if err := json.Unmarshal(env.Payload, &complete); err != nil {
				log.Printf("[coordinator] failed to unmarshal %s message: %v", env.Type, err)
				continue
			}
			output := c.GetAndClearOutput(complete.JobID)
			if complete.Output != "" {
				output = complete.Output
			}
			c.dispatcher.Complete(complete.JobID, &StepResult{
				JobID:      complete.JobID,
				ExitCode:   complete.ExitCode,
				Output:     output,
				DurationMs: complete.DurationMs,
			})

		case runnerprotocol.TypeError:
			var errMsg runnerprotocol.ErrorMessage
			if err := json.Unmarshal(env.Payload, &errMsg); err != nil {
				log.Printf("[coordinator] failed to unmarshal %s message: %v", env.Type, err)
				continue
			}
			output := c.GetAndClearOutput(errMsg.JobID)
			c.dispatcher.Complete(errMsg.JobID, &StepResult{
				JobID:    errMsg.JobID,
				ExitCode: -1,
				Output:   output + "error: " + errMsg.Message,
			})
		}
	}
}

func (c *Coordinator) sendJobToRunner(r *ConnectedRunner, job *runnerprotocol.StepJobMessage) error {
	data, err := runnerprotocol.MarshalEnvelope(runnerprotocol.TypeStepJob, job)
	if err != nil {
		return err
	}
	return r.WriteMessage(websocket.TextMessage, data)
}

func (c *Coordinator) sendCancelToRunner(runnerID, jobID string) error {
	r := c.registry.Get(runnerID)
	if r == nil {
		return fmt.Errorf("runner %s not found", runnerID)
	}

	data, err := runnerprotocol.MarshalEnvelope(runnerprotocol.TypeCancel, runnerprotocol.CancelMessage{
		JobID: jobID,
	})
	if err != nil {
		return err
	}
	return r.WriteMessage(websocket.TextMessage, data)
}

// Start starts the coordinator server. Blocks until the server stops.
func (c *Coordinator) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.HandleWebSocket)
	mux.HandleFunc("/status", c.HandleStatus)

	addr := fmt.Sprintf(":%d", c.config.Port)
	c.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go c.heartbeatLoop(ctx)

	log.Printf("[coordinator] listening on %s", addr)
	return c.server.ListenAndServe()
}

// Stop stops the coordinator server
func (c *Coordinator) Stop() error {
	if c.server != nil {
		return c.server.Close()
	}
	return nil
}

// RunnerStatus describes a connected runner for status reporting
type RunnerStatus struct {
	ID             string          `json:"id"`
	Platform       domain.Platform `json:"platform"`
	MaxJobs        int             `json:"max_jobs"`
	ActiveJobs     int             `json:"active_jobs"`
	ConnectedSince string          `json:"connected_since"`
}

// RunnerStatuses returns a snapshot of all connected runners
func (c *Coordinator) RunnerStatuses() []RunnerStatus {
	statuses := []RunnerStatus{}
	for _, runner := range c.registry.All() {
		platform, maxJobs, slots, connectedAt := runner.Status()
		statuses = append(statuses, RunnerStatus{
			ID:             runner.ID,
			Platform:       platform,
			MaxJobs:        maxJobs,
			ActiveJobs:     maxJobs - slots,
			ConnectedSince: connectedAt.Format(time.RFC3339),
		})
	}
	return statuses
}

// HandleStatus returns the current status of runners and the job queue
func (c *Coordinator) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"runners":     c.RunnerStatuses(),
		"queued_jobs": c.dispatcher.QueueLength(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (c *Coordinator) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sendHeartbeats()
		}
	}
}

func (c *Coordinator) sendHeartbeats() {
	for _, r := range c.registry.All() {
		// Protocol-level ping keeps the connection alive; the pong
		// handler on the runner side extends its read deadline.
		r.writeMu.Lock()
		r.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		err := r.Conn.WriteMessage(websocket.PingMessage, nil)
		r.Conn.SetWriteDeadline(time.Time{})
		r.writeMu.Unlock()

		if err != nil {
			log.Printf("[coordinator] ping to %s failed: %v", r.ID, err)
			r.Conn.Close()
		}
	}
}

// AccumulateOutput appends streamed output for a job
func (c *Coordinator) AccumulateOutput(jobID, data string) {
	c.outputMu.Lock()
	defer c.outputMu.Unlock()

	if c.outputBuffer[jobID] == nil {
		c.outputBuffer[jobID] = &strings.Builder{}
	}
	c.outputBuffer[jobID].WriteString(data)
}

// GetAndClearOutput returns accumulated output and clears the buffer
func (c *Coordinator) GetAndClearOutput(jobID string) string {
	c.outputMu.Lock()
	defer c.outputMu.Unlock()

	if buf, ok := c.outputBuffer[jobID]; ok {
		output := buf.String()
		delete(c.outputBuffer, jobID)
		return output
	}
	return ""
}
