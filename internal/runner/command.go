// Package runner implements the command runner (§4.5), host strategies
// (§4.6), and task runner (§4.7): the layers that turn a resolved
// (command, host) pair into a CommandResult, a HostResult, and finally a
// TaskResult, never raising across any of those boundaries.
package runner

import (
	"context"
	"time"

	"github.com/nexus-run/nexus/internal/backoff"
	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/guard"
	"github.com/nexus-run/nexus/internal/predicate"
	"github.com/nexus-run/nexus/internal/telemetry"
	"github.com/nexus-run/nexus/internal/textenc"
)

// CommandRunner drives one command on one host: guard, then the
// attempt loop (retry + exponential backoff + 20% jitter), then timeout,
// producing a CommandResult on every exit path.
type CommandRunner struct {
	Transport Transport
	Defaults  core.Defaults
	Sink      telemetry.Sink
}

func NewCommandRunner(transport Transport, defaults core.Defaults, sink telemetry.Sink) *CommandRunner {
	if sink == nil {
		sink = telemetry.Noop{}
	}
	return &CommandRunner{Transport: transport, Defaults: defaults, Sink: sink}
}

// Run executes cmd against host. It never returns an error; every
// outcome — ok, error, skipped, or cancelled — is folded into the
// returned CommandResult.
func (r *CommandRunner) Run(ctx context.Context, cmd core.Command, host core.Host, facts predicate.Facts, taskName string) core.CommandResult {
	meta := telemetry.Metadata{"task": taskName, "host": host.Name, "command": preview(cmd.Shell)}

	decision := guard.Evaluate(ctx, cmd, host, facts, r.Transport, r.Transport)
	if decision.Skip {
		return core.CommandResult{Status: core.StatusSkipped, Reason: decision.Reason}
	}

	timeout := cmd.ResolveTimeout(r.Defaults)
	maxAttempts := cmd.MaxAttempts()
	retryDelay := cmd.RetryDelayMS
	if retryDelay <= 0 {
		retryDelay = r.Defaults.RetryDelayMS
	}
	policy := backoff.NewJitterExponentialPolicy(time.Duration(retryDelay)*time.Millisecond, cmd.Retries)
	retrier := backoff.NewRetrier(policy)

	start := time.Now()
	r.Sink.Emit(telemetry.EventCommandStart, telemetry.Measurements{"system_time": start}, meta)

	shell := wrapPrivilege(cmd.Shell, host, cmd.Sudo, cmd.RunAsUser)

	var last core.CommandResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			last = core.CommandResult{Status: core.StatusError, Attempts: attempt - 1, Reason: core.ReasonCancelled}
			break
		}

		attemptStart := time.Now()
		output, exitCode, err := r.Transport.Exec(ctx, host, shell, timeout)
		elapsed := time.Since(attemptStart).Milliseconds()

		if decoded, decErr := textenc.ToUTF8(output, host.OutputEncoding); decErr == nil {
			output = decoded
		}

		if err == nil && exitCode == 0 {
			last = core.CommandResult{Status: core.StatusOK, Output: output, ExitCode: exitCode, Attempts: attempt, DurationMS: time.Since(start).Milliseconds()}
			break
		}

		reason := ""
		if err != nil {
			reason = err.Error()
		}
		last = core.CommandResult{Status: core.StatusError, Output: output, ExitCode: exitCode, Attempts: attempt, DurationMS: elapsed, Reason: reason}

		if attempt == maxAttempts {
			break
		}

		waitErr := retrier.Next(ctx)
		r.Sink.Emit(telemetry.EventCommandRetry, telemetry.Measurements{"attempt": attempt, "delay_ms": retryDelay}, mergeMeta(meta, telemetry.Metadata{"exit_code": exitCode}))
		if waitErr != nil {
			if waitErr == backoff.ErrOperationCanceled {
				last.Reason = core.ReasonCancelled
			}
			break
		}
	}

	last.DurationMS = time.Since(start).Milliseconds()
	r.Sink.Emit(telemetry.EventCommandStop, telemetry.Measurements{"duration": last.DurationMS, "attempt": last.Attempts}, mergeMeta(meta, telemetry.Metadata{"exit_code": last.ExitCode, "status": string(last.Status)}))
	return last
}

func preview(shell string) string {
	const max = 80
	if len(shell) <= max {
		return shell
	}
	return shell[:max] + "..."
}

func mergeMeta(base telemetry.Metadata, extra telemetry.Metadata) telemetry.Metadata {
	out := make(telemetry.Metadata, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
