package runnerpool

import (
	"sync"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runnerprotocol"
)

// StepResult is the outcome of one dispatched step job
type StepResult struct {
	JobID      string
	ExitCode   int
	Output     string
	DurationMs int64
}

// PendingJob tracks a step job waiting for dispatch or completion
type PendingJob struct {
	Job      *runnerprotocol.StepJobMessage
	Platform domain.Platform
	ResultCh chan *StepResult
	RunnerID string // assigned runner (empty if queued)
}

// SendFunc sends a step job to a runner
type SendFunc func(r *ConnectedRunner, job *runnerprotocol.StepJobMessage) error

// CancelFunc requests cancellation of a job on a runner
type CancelFunc func(runnerID, jobID string) error

// EmbeddedRunnerFunc runs a step job on the embedded local executor.
// It is only consulted for the coordinator's own platform.
type EmbeddedRunnerFunc func(job *runnerprotocol.StepJobMessage) *StepResult

// Dispatcher manages the step job queue and platform-aware assignment
type Dispatcher struct {
	registry         *Registry
	embedded         EmbeddedRunnerFunc
	embeddedPlatform domain.Platform
	sendFunc         SendFunc
	cancelFunc       CancelFunc

	queue   []*PendingJob
	pending map[string]*PendingJob // jobID -> pending job
	mu      sync.Mutex
}

// NewDispatcher creates a step dispatcher. The embedded runner, if non-nil,
// handles jobs for embeddedPlatform when no remote runner of that platform
// is connected.
func NewDispatcher(registry *Registry, embedded EmbeddedRunnerFunc, embeddedPlatform domain.Platform) *Dispatcher {
	return &Dispatcher{
		registry:         registry,
		embedded:         embedded,
		embeddedPlatform: embeddedPlatform,
		pending:          make(map[string]*PendingJob),
	}
}

// SetSendFunc sets the function used to send jobs to runners
func (d *Dispatcher) SetSendFunc(fn SendFunc) {
	d.sendFunc = fn
}

// SetCancelFunc sets the function used to cancel jobs on runners
func (d *Dispatcher) SetCancelFunc(fn CancelFunc) {
	d.cancelFunc = fn
}

// Submit queues a step job for the given platform and returns a channel
// that receives the result exactly once
func (d *Dispatcher) Submit(job *runnerprotocol.StepJobMessage, platform domain.Platform) chan *StepResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	resultCh := make(chan *StepResult, 1)
	pending := &PendingJob{
		Job:      job,
		Platform: platform,
		ResultCh: resultCh,
	}

	d.queue = append(d.queue, pending)
	d.pending[job.JobID] = pending

	return resultCh
}

// TryDispatch attempts to dispatch queued jobs to runners matching
// each job's platform, falling back to the embedded executor when no
// runner of that platform is connected
func (d *Dispatcher) TryDispatch() {
	d.mu.Lock()
	defer d.mu.Unlock()

	var remaining []*PendingJob

	for _, pj := range d.queue {
		runner := d.registry.FindReady(pj.Platform)

		if runner != nil && d.sendFunc != nil {
			runner.DecrementSlots()
			pj.RunnerID = runner.ID

			if err := d.sendFunc(runner, pj.Job); err != nil {
				pj.RunnerID = ""
				remaining = append(remaining, pj)
				continue
			}
		} else if d.embedded != nil && pj.Platform == d.embeddedPlatform &&
			d.registry.CountPlatform(pj.Platform) == 0 {
			go func(pj *PendingJob) {
				result := d.embedded(pj.Job)
				d.Complete(pj.Job.JobID, result)
			}(pj)
		} else {
			// No runner for this platform yet, keep queued
			remaining = append(remaining, pj)
		}
	}

	d.queue = remaining
}

// Complete marks a job as complete and delivers the result
func (d *Dispatcher) Complete(jobID string, result *StepResult) {
	d.mu.Lock()
	pj, ok := d.pending[jobID]
	if ok {
		delete(d.pending, jobID)
	}
	d.mu.Unlock()

	if ok && pj.ResultCh != nil {
		pj.ResultCh <- result
		close(pj.ResultCh)
	}
}

// Cancel requests cancellation of a pending or running job
func (d *Dispatcher) Cancel(jobID string) {
	d.mu.Lock()
	pj, ok := d.pending[jobID]
	var runnerID string
	if ok {
		runnerID = pj.RunnerID
	}
	d.mu.Unlock()

	if ok && runnerID != "" && d.cancelFunc != nil {
		d.cancelFunc(runnerID, jobID)
	}
}

// RequeueRunnerJobs moves in-flight jobs of a disconnected runner back
// into the queue so another runner can pick them up
func (d *Dispatcher) RequeueRunnerJobs(runnerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, pj := range d.pending {
		if pj.RunnerID == runnerID {
			pj.RunnerID = ""
			d.queue = append(d.queue, pj)
		}
	}
}

// QueueLength returns the number of queued jobs
func (d *Dispatcher) QueueLength() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// PendingCount returns the number of pending jobs (queued + in-progress)
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
