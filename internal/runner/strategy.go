package runner

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nexus-run/nexus/internal/core"
)

// RunHostFunc executes one host's full command sequence and returns its
// HostResult. Shared by all three fan-out strategies per spec §9's
// "one code path" design note.
type RunHostFunc func(ctx context.Context, host core.Host) core.HostResult

// Schedule runs hosts through runHost according to strategy, honoring
// batchSize for rolling and continueOnError for whether a batch failure
// stops subsequent batches. hostConcurrency caps how many hosts run at
// once under "parallel" (0 means unbounded beyond len(hosts)).
func Schedule(ctx context.Context, hosts []core.Host, strategy core.Strategy, batchSize int, continueOnError bool, hostConcurrency int64, runHost RunHostFunc) []core.HostResult {
	switch strategy {
	case core.StrategySerial:
		return scheduleSerial(ctx, hosts, runHost)
	case core.StrategyRolling:
		return scheduleRolling(ctx, hosts, batchSize, continueOnError, hostConcurrency, runHost)
	case core.StrategyParallel:
		fallthrough
	default:
		return scheduleParallel(ctx, hosts, hostConcurrency, runHost)
	}
}

func scheduleSerial(ctx context.Context, hosts []core.Host, runHost RunHostFunc) []core.HostResult {
	results := make([]core.HostResult, len(hosts))
	for i, h := range hosts {
		results[i] = runHost(ctx, h)
	}
	return results
}

func scheduleParallel(ctx context.Context, hosts []core.Host, concurrency int64, runHost RunHostFunc) []core.HostResult {
	results := make([]core.HostResult, len(hosts))
	var sem *semaphore.Weighted
	if concurrency > 0 {
		sem = semaphore.NewWeighted(concurrency)
	}

	var wg sync.WaitGroup
	for i, h := range hosts {
		wg.Add(1)
		go func(idx int, host core.Host) {
			defer wg.Done()
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					results[idx] = core.HostResult{Host: host.Name, Status: core.StatusError}
					return
				}
				defer sem.Release(1)
			}
			results[idx] = runHost(ctx, host)
		}(i, h)
	}
	wg.Wait()
	return results
}

func scheduleRolling(ctx context.Context, hosts []core.Host, batchSize int, continueOnError bool, concurrency int64, runHost RunHostFunc) []core.HostResult {
	if batchSize < 1 {
		batchSize = 1
	}
	results := make([]core.HostResult, len(hosts))
	aborted := false

	for start := 0; start < len(hosts); start += batchSize {
		end := start + batchSize
		if end > len(hosts) {
			end = len(hosts)
		}
		batch := hosts[start:end]

		if aborted {
			for i := start; i < end; i++ {
				results[i] = core.HostResult{Host: hosts[i].Name, Status: core.StatusNotRun}
			}
			continue
		}

		batchResults := scheduleParallel(ctx, batch, concurrency, runHost)
		copy(results[start:end], batchResults)

		if !continueOnError {
			for _, r := range batchResults {
				if r.Status == core.StatusError {
					aborted = true
					break
				}
			}
		}
	}
	return results
}
