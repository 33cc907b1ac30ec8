package runner

import (
	"context"
	"time"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/facts"
	"github.com/nexus-run/nexus/internal/predicate"
	"github.com/nexus-run/nexus/internal/telemetry"
)

// TaskRunner resolves one task's hosts, invokes its strategy, and
// aggregates the result. It never raises: every exit path returns a
// TaskResult.
type TaskRunner struct {
	Config          core.Config
	Router          HostRouter
	Facts           facts.Provider
	ProcessFacts    predicate.Facts // merged, process-wide facts for task-level `when` (§4.7 step 2)
	Sink            telemetry.Sink
	ContinueOnError bool
	HostConcurrency int64
}

func NewTaskRunner(cfg core.Config, router HostRouter, provider facts.Provider, processFacts predicate.Facts, sink telemetry.Sink, continueOnError bool, hostConcurrency int64) *TaskRunner {
	if sink == nil {
		sink = telemetry.Noop{}
	}
	return &TaskRunner{
		Config:          cfg,
		Router:          router,
		Facts:           provider,
		ProcessFacts:    processFacts,
		Sink:            sink,
		ContinueOnError: continueOnError,
		HostConcurrency: hostConcurrency,
	}
}

// Run executes task and returns its TaskResult.
func (tr *TaskRunner) Run(ctx context.Context, task core.Task) core.TaskResult {
	meta := telemetry.Metadata{"task": task.Name}
	start := time.Now()
	tr.Sink.Emit(telemetry.EventTaskStart, telemetry.Measurements{"system_time": start}, meta)

	result := tr.run(ctx, task)
	result.DurationMS = time.Since(start).Milliseconds()

	tr.Sink.Emit(telemetry.EventTaskStop, telemetry.Measurements{"duration": result.DurationMS}, mergeMeta(meta, telemetry.Metadata{"status": string(result.Status)}))
	return result
}

func (tr *TaskRunner) run(ctx context.Context, task core.Task) core.TaskResult {
	hosts, err := core.ResolveHosts(tr.Config, task)
	if err != nil {
		tr.Sink.Emit(telemetry.EventTaskException, nil, telemetry.Metadata{"task": task.Name, "error": err.Error()})
		return core.TaskResult{Task: task.Name, Status: core.StatusError}
	}

	when := task.When
	if when == nil {
		when = predicate.Always
	}
	if !when.Eval(tr.ProcessFacts) {
		return core.TaskResult{Task: task.Name, Status: core.StatusOK, Skipped: true}
	}

	strategy := task.Strategy
	if strategy == "" {
		strategy = tr.Config.Defaults.Strategy
	}
	batchSize := task.BatchSize
	if batchSize < 1 {
		batchSize = tr.Config.Defaults.BatchSize
	}

	defaults := tr.Config.Defaults
	results := Schedule(ctx, hosts, strategy, batchSize, tr.ContinueOnError, tr.HostConcurrency, func(ctx context.Context, host core.Host) core.HostResult {
		return tr.runHost(ctx, task, host, defaults)
	})

	status := core.StatusOK
	for _, r := range results {
		if r.Status != core.StatusOK && r.Status != core.StatusSkipped {
			status = core.StatusError
			break
		}
	}

	return core.TaskResult{Task: task.Name, Status: status, HostResults: results}
}

func (tr *TaskRunner) runHost(ctx context.Context, task core.Task, host core.Host, defaults core.Defaults) core.HostResult {
	var hostFacts predicate.Facts
	if tr.Facts != nil {
		var err error
		hostFacts, err = tr.Facts.Facts(ctx, host)
		if err != nil {
			hostFacts = nil
		}
	}

	transport := tr.Router.For(host)
	cr := NewCommandRunner(transport, defaults, tr.Sink)
	return RunHostCommands(ctx, cr, host, task.Commands, hostFacts, tr.ContinueOnError, task.Name)
}
