// Package guard implements the guard evaluator (§4.4): for a (command,
// host) pair, decide run-vs-skip from `when`, `creates`, `removes`,
// `onlyif`, and `unless`, in that order, before the first attempt.
package guard

import (
	"context"
	"time"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/predicate"
)

// DefaultProbeTimeout bounds how long a guard probe may run.
const DefaultProbeTimeout = 10 * time.Second

// Prober runs a short-lived shell probe on a host and reports its exit
// code, discarding output. Implemented by the local and SSH executors.
type Prober interface {
	Probe(ctx context.Context, host core.Host, command string, timeout time.Duration) (exitCode int, err error)
}

// PathChecker reports whether a path exists on a host.
type PathChecker interface {
	Exists(ctx context.Context, host core.Host, path string) (bool, error)
}

// Decision is the outcome of evaluating a command's guards.
type Decision struct {
	Skip   bool
	Reason string
}

// Evaluate runs the guard chain in spec order, first match wins.
func Evaluate(ctx context.Context, cmd core.Command, host core.Host, facts predicate.Facts, prober Prober, paths PathChecker) Decision {
	when := cmd.When
	if when == nil {
		when = predicate.Always
	}
	if !when.Eval(facts) {
		return Decision{Skip: true, Reason: "when predicate false"}
	}

	if cmd.Creates != "" {
		if ok, _ := paths.Exists(ctx, host, cmd.Creates); ok {
			return Decision{Skip: true, Reason: "creates: " + cmd.Creates + " already exists"}
		}
	}

	if cmd.Removes != "" {
		if ok, _ := paths.Exists(ctx, host, cmd.Removes); !ok {
			return Decision{Skip: true, Reason: "removes: " + cmd.Removes + " already absent"}
		}
	}

	if cmd.OnlyIf != "" {
		code, err := prober.Probe(ctx, host, cmd.OnlyIf, DefaultProbeTimeout)
		if err != nil || code != 0 {
			return Decision{Skip: true, Reason: "onlyif probe failed"}
		}
	}

	if cmd.Unless != "" {
		code, err := prober.Probe(ctx, host, cmd.Unless, DefaultProbeTimeout)
		if err == nil && code == 0 {
			return Decision{Skip: true, Reason: "unless probe succeeded"}
		}
	}

	return Decision{Skip: false}
}
