// Package facts defines the facts-provider collaborator interface (§6):
// given a host, return the opaque fact map the guard evaluator's `when`
// predicates read. The core treats facts as opaque input; it never
// computes them itself.
package facts

import (
	"context"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/predicate"
)

// Provider resolves a host's fact context.
type Provider interface {
	Facts(ctx context.Context, host core.Host) (predicate.Facts, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, host core.Host) (predicate.Facts, error)

func (f ProviderFunc) Facts(ctx context.Context, host core.Host) (predicate.Facts, error) {
	return f(ctx, host)
}

// Static returns a Provider that always returns the same facts,
// regardless of host — useful for tests and for a task-level `when`
// merged-facts context that is process-wide rather than per-host
// (spec §4.7 step 2).
func Static(f predicate.Facts) Provider {
	return ProviderFunc(func(context.Context, core.Host) (predicate.Facts, error) {
		return f, nil
	})
}
