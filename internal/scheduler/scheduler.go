// Package scheduler ties the digraph builder and the task runner
// together into the three APIs spec §6 exposes: Validate, DryRun, Run.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/digraph"
	"github.com/nexus-run/nexus/internal/telemetry"
)

// TaskRunner is what the scheduler needs from the task execution layer.
// Satisfied by *runner.TaskRunner; tests substitute a fake.
type TaskRunner interface {
	Run(ctx context.Context, task core.Task) core.TaskResult
}

// Options configures one Run. ParallelLimit <= 0 means "use
// config.Defaults.ParallelLimit". ContinueOnError should be the CLI flag
// OR'd with config.Defaults.ContinueOnError (spec §4.8 step 6c) — the
// caller is responsible for computing that union before calling Run, the
// same union it also passes to the TaskRunner for host-level sequencing.
type Options struct {
	ParallelLimit   int
	ContinueOnError bool
	Sink            telemetry.Sink
}

// Scheduler builds the task DAG from its Config and exposes
// Validate/DryRun/Run against it; each of those calls rebuilds the graph.
type Scheduler struct {
	Config core.Config
	Runner TaskRunner
}

func New(cfg core.Config, runner TaskRunner) *Scheduler {
	return &Scheduler{Config: cfg, Runner: runner}
}

func (s *Scheduler) buildGraph() (*digraph.Graph, error) {
	tasks := make([]digraph.TaskDeps, 0, len(s.Config.Tasks))
	for name, t := range s.Config.Tasks {
		tasks = append(tasks, digraph.TaskDeps{Name: name, Deps: t.Deps})
	}
	g, err := digraph.Build(tasks)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Scheduler) unknownTargets(targets []string) []string {
	var missing []string
	for _, t := range targets {
		if _, ok := s.Config.Tasks[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// Validate runs the same pre-flight checks Run performs, without
// executing anything: unknown targets, unknown deps/hosts, cycles.
func (s *Scheduler) Validate(targets []string) error {
	if missing := s.unknownTargets(targets); len(missing) > 0 {
		return &core.ValidationError{Kind: "unknown_tasks", UnknownTasks: missing}
	}
	if err := core.ValidateStatic(s.Config); err != nil {
		return err
	}
	_, err := s.buildGraph()
	return err
}

// DryRun returns the phase decomposition the induced subgraph of targets
// would execute, without running anything. Purely static.
func (s *Scheduler) DryRun(targets []string) (core.ExecutionPlan, error) {
	if missing := s.unknownTargets(targets); len(missing) > 0 {
		return core.ExecutionPlan{}, &core.ValidationError{Kind: "unknown_tasks", UnknownTasks: missing}
	}
	if err := core.ValidateStatic(s.Config); err != nil {
		return core.ExecutionPlan{}, err
	}
	g, err := s.buildGraph()
	if err != nil {
		return core.ExecutionPlan{}, err
	}
	sub, err := g.SubgraphFor(targets)
	if err != nil {
		return core.ExecutionPlan{}, err
	}

	phases := sub.Phases()
	details := make(map[string]core.Task, len(sub.Nodes()))
	for _, n := range sub.Nodes() {
		details[n] = s.Config.Tasks[n]
	}

	total := 0
	for _, p := range phases {
		total += len(p)
	}

	return core.ExecutionPlan{TotalTasks: total, Phases: phases, TaskDetails: details}, nil
}

// Run executes the induced subgraph of targets phase by phase, honoring
// opts.ParallelLimit and opts.ContinueOnError, per spec §4.8.
func (s *Scheduler) Run(ctx context.Context, targets []string, opts Options) (core.PipelineResult, error) {
	sink := opts.Sink
	if sink == nil {
		sink = telemetry.Noop{}
	}

	if missing := s.unknownTargets(targets); len(missing) > 0 {
		return core.PipelineResult{}, &core.ValidationError{Kind: "unknown_tasks", UnknownTasks: missing}
	}
	if err := core.ValidateStatic(s.Config); err != nil {
		return core.PipelineResult{}, err
	}
	g, err := s.buildGraph()
	if err != nil {
		return core.PipelineResult{}, err
	}
	sub, err := g.SubgraphFor(targets)
	if err != nil {
		return core.PipelineResult{}, err
	}
	phases := sub.Phases()

	limit := int64(opts.ParallelLimit)
	if limit <= 0 {
		limit = int64(s.Config.Defaults.ParallelLimit)
	}

	start := time.Now()
	sink.Emit(telemetry.EventPipelineStart, telemetry.Measurements{"system_time": start}, telemetry.Metadata{"targets": targets})

	result := core.PipelineResult{Status: core.StatusOK}
	abortedAt := ""

	for _, phase := range phases {
		if abortedAt != "" {
			for _, name := range phase {
				result.TaskResults = append(result.TaskResults, core.TaskResult{Task: name, Status: core.StatusNotRun})
			}
			continue
		}

		phaseResults := s.runPhase(ctx, phase, sink, limit)
		result.TaskResults = append(result.TaskResults, phaseResults...)

		for _, tr := range phaseResults {
			if tr.Status == core.StatusError && abortedAt == "" {
				abortedAt = tr.Task
			}
		}
		if abortedAt != "" && !opts.ContinueOnError {
			continue // remaining phases recorded as not_run above
		}
		abortedAt = "" // continue_on_error: don't block later phases
	}

	// Recompute the reported abort point: the first failing task across
	// the whole run, regardless of which phase tripped it.
	firstFailure := ""
	for _, tr := range result.TaskResults {
		if tr.Status == core.StatusError {
			firstFailure = tr.Task
			break
		}
	}
	result.AbortedAt = firstFailure

	for _, tr := range result.TaskResults {
		if tr.Status == core.StatusNotRun {
			continue
		}
		result.TasksRun++
		switch tr.Status {
		case core.StatusError:
			result.TasksFailed++
			result.Status = core.StatusError
		default:
			result.TasksSucceeded++
		}
	}

	result.DurationMS = time.Since(start).Milliseconds()
	sink.Emit(telemetry.EventPipelineStop, telemetry.Measurements{"duration": result.DurationMS}, telemetry.Metadata{"status": string(result.Status)})

	return result, nil
}

func (s *Scheduler) runPhase(ctx context.Context, taskNames []string, sink telemetry.Sink, limit int64) []core.TaskResult {
	names := append([]string(nil), taskNames...)
	sort.Strings(names)

	results := make([]core.TaskResult, len(names))
	var sem *semaphore.Weighted
	if limit > 0 {
		sem = semaphore.NewWeighted(limit)
	}

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(idx int, taskName string) {
			defer wg.Done()
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					results[idx] = core.TaskResult{Task: taskName, Status: core.StatusError}
					return
				}
				defer sem.Release(1)
			}
			results[idx] = s.runTaskSafely(ctx, taskName, sink)
		}(i, name)
	}
	wg.Wait()
	return results
}

// runTaskSafely recovers a panicking task runner into a failed
// TaskResult plus a pipeline.exception span, per spec §4.8's exception
// handling note.
func (s *Scheduler) runTaskSafely(ctx context.Context, taskName string, sink telemetry.Sink) (result core.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			sink.Emit(telemetry.EventPipelineException, nil, telemetry.Metadata{"task": taskName, "panic": r})
			result = core.TaskResult{Task: taskName, Status: core.StatusError}
		}
	}()
	return s.Runner.Run(ctx, s.Config.Tasks[taskName])
}
