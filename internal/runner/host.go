package runner

import (
	"context"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/predicate"
)

// RunHostCommands runs cmds against host sequentially, in declaration
// order, per spec §4.6: the first error terminates the sequence unless
// continueOnError is set, in which case subsequent commands still run
// but the host's final status is error. A host's status is ok iff every
// non-skipped command returned ok.
func RunHostCommands(ctx context.Context, cr *CommandRunner, host core.Host, cmds []core.Command, facts predicate.Facts, continueOnError bool, taskName string) core.HostResult {
	results := make([]core.CommandResult, 0, len(cmds))
	failed := false

	for _, cmd := range cmds {
		res := cr.Run(ctx, cmd, host, facts, taskName)
		results = append(results, res)
		if res.Status == core.StatusError {
			failed = true
			if !continueOnError {
				break
			}
		}
	}

	status := core.StatusOK
	if failed {
		status = core.StatusError
	}
	return core.HostResult{Host: host.Name, Status: status, Commands: results}
}
