package main

import (
	"context"
	"log"

	"github.com/crossgate-ci/crossgate/internal/config"
	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/notify"
	"github.com/crossgate-ci/crossgate/internal/orchestrator"
	"github.com/crossgate-ci/crossgate/internal/pipeline"
	"github.com/crossgate-ci/crossgate/internal/runnerpool"
	"github.com/crossgate-ci/crossgate/internal/runstore"
	"github.com/crossgate-ci/crossgate/internal/schedule"
	"github.com/crossgate-ci/crossgate/internal/stepexec"
	"github.com/crossgate-ci/crossgate/internal/watch"
	"github.com/crossgate-ci/crossgate/web/api"
)

// daemon wires the long-running pieces of `crossgate serve`: the
// orchestrator, the runner coordinator, the definition watcher, the
// scheduler, the web API and the notifier.
type daemon struct {
	cfg         *config.Config
	store       *runstore.Store
	orch        *orchestrator.Orchestrator
	coordinator *runnerpool.Coordinator
	queue       *triggerQueue
	notifier    notify.Notifier
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	pipe, err := pipeline.Load(cfg.General.PipelinePath)
	if err != nil {
		return nil, err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return nil, err
	}

	exec := stepexec.New(stepexec.Config{
		WorkDir: cfg.General.WorkDir,
		Debug:   cfg.General.Debug,
	})

	d := &daemon{
		cfg:      cfg,
		store:    store,
		notifier: notifierFromConfig(cfg),
	}

	var runner orchestrator.StepRunner
	if cfg.Coordinator.Enabled {
		registry := runnerpool.NewRegistry()
		dispatcher := runnerpool.NewDispatcher(registry,
			runnerpool.NewEmbeddedRunner(exec), runnerpool.LocalPlatform())
		d.coordinator = runnerpool.NewCoordinator(runnerpool.CoordinatorConfig{
			Port:              cfg.Coordinator.Port,
			HeartbeatInterval: cfg.Coordinator.HeartbeatInterval,
			HeartbeatTimeout:  cfg.Coordinator.HeartbeatTimeout,
		}, registry, dispatcher)
		runner = runnerpool.NewPoolRunner(dispatcher)
	} else {
		runner = orchestrator.NewLocalRunner(exec)
	}

	d.orch = orchestrator.New(pipe, runner, orchestrator.Config{
		MaxParallel: cfg.General.MaxEnvironments,
		Debug:       cfg.General.Debug,
	})
	d.queue = newTriggerQueue(d.orch)

	return d, nil
}

func (d *daemon) run(ctx context.Context, webAddr string) error {
	defer d.store.Close()

	server := api.NewServer(d.store, d.queue, d.coordinator, webAddr)

	d.orch.SetOnEvent(func(ev orchestrator.Event) {
		server.Broadcast(api.SSEEvent{Type: ev.Type, Data: ev})
	})

	if d.coordinator != nil {
		go func() {
			if err := d.coordinator.Start(ctx); err != nil {
				log.Printf("[serve] coordinator stopped: %v", err)
			}
		}()
		defer d.coordinator.Stop()
	}

	d.startWatcher(ctx)
	d.startScheduler(ctx)

	go func() {
		log.Printf("[serve] web API listening on %s", webAddr)
		if err := server.Start(); err != nil {
			log.Printf("[serve] web API stopped: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case trigger := <-d.queue.ch:
			d.handleTrigger(ctx, trigger)
		}
	}
}

// handleTrigger drives one run to completion, records it and notifies.
// Runs are serialized: a trigger arriving mid-run waits in the queue.
func (d *daemon) handleTrigger(ctx context.Context, trigger domain.Trigger) {
	log.Printf("[serve] handling trigger %s/%s", trigger.Event, trigger.Branch)

	run := d.orch.Handle(ctx, trigger)
	if run == nil {
		return
	}

	if err := d.store.SaveRun(run); err != nil {
		log.Printf("[serve] recording run %s: %v", run.ID, err)
	}
	if err := d.notifier.Send(notify.ForRun(run)); err != nil {
		log.Printf("[serve] sending notification: %v", err)
	}
	log.Printf("[serve] run %s finalized: %s", run.ID, run.Status)
}

// startWatcher reloads the pipeline definition when the file changes.
// In-flight runs keep the definition they started with.
func (d *daemon) startWatcher(ctx context.Context) {
	path := d.cfg.General.PipelinePath
	watcher, err := watch.NewDefinitionWatcher(path, func(changed string) {
		pipe, err := pipeline.Load(changed)
		if err != nil {
			log.Printf("[serve] reloading pipeline definition: %v", err)
			return
		}
		d.orch.SetPipeline(pipe)
		log.Printf("[serve] pipeline definition reloaded from %s", changed)
	})
	if err != nil {
		log.Printf("[serve] pipeline watcher disabled: %v", err)
		return
	}
	watcher.Start(ctx)
}

// startScheduler fires periodic runs when the definition declares a
// schedule.
func (d *daemon) startScheduler(ctx context.Context) {
	pipe := d.orch.Pipeline()
	if pipe.Schedule == "" {
		return
	}

	branch := "main"
	if len(pipe.Branches) > 0 {
		branch = pipe.Branches[0]
	}

	sched, err := schedule.NewScheduler(pipe.Schedule, branch, func(t domain.Trigger) {
		d.queue.Submit(t)
	})
	if err != nil {
		log.Printf("[serve] scheduler disabled: %v", err)
		return
	}
	go sched.Start(ctx)
	log.Printf("[serve] schedule %q active, next run %s", pipe.Schedule, sched.NextRun())
}
