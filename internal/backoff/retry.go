// Package backoff provides the exponential-backoff-with-jitter retry
// policy used by the command runner. The shape is adapted from a
// Temporal-style retry policy: a pure ComputeNextInterval plus a stateful
// Retrier that knows how to sleep, cancellably, between attempts.
package backoff

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	// ErrRetriesExhausted is returned once the retry budget is spent.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrOperationCanceled is returned when the wait is cut short by ctx.
	ErrOperationCanceled = errors.New("operation canceled")
)

// Policy computes the interval before the next retry attempt.
type Policy interface {
	// ComputeNextInterval returns the wait before retry number
	// retryCount+1 (1-indexed: the first retry is retryCount=0 on entry),
	// or ErrRetriesExhausted if no further attempt should be made.
	ComputeNextInterval(retryCount int) (time.Duration, error)
}

// JitterExponentialPolicy implements spec §4.5(d): delay = base *
// 2^(attempt-1), multiplied by a uniform random factor in [0.8, 1.2].
type JitterExponentialPolicy struct {
	BaseDelay  time.Duration
	MaxRetries int // total retries allowed; 0 means unlimited

	// randFloat returns a value in [0,1); overridable in tests for
	// deterministic jitter assertions.
	randFloat func() float64
}

// NewJitterExponentialPolicy builds the spec-mandated retry policy.
func NewJitterExponentialPolicy(baseDelay time.Duration, maxRetries int) *JitterExponentialPolicy {
	return &JitterExponentialPolicy{BaseDelay: baseDelay, MaxRetries: maxRetries}
}

func (p *JitterExponentialPolicy) rand() float64 {
	if p.randFloat != nil {
		return p.randFloat()
	}
	return rand.Float64() //nolint:gosec // jitter need not be cryptographically random
}

// ComputeNextInterval implements Policy. retryCount is 0-indexed: the
// first retry (attempt n=1 in spec terms) is ComputeNextInterval(0).
func (p *JitterExponentialPolicy) ComputeNextInterval(retryCount int) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}
	base := float64(p.BaseDelay) * math.Pow(2, float64(retryCount))
	jitter := 0.8 + p.rand()*0.4 // uniform in [0.8, 1.2)
	return time.Duration(base * jitter), nil
}

// Retrier drives the sleep between attempts, cancellably.
type Retrier interface {
	// Next blocks until the next retry's delay has elapsed, or returns
	// ErrRetriesExhausted / ErrOperationCanceled.
	Next(ctx context.Context) error
	Reset()
}

// NewRetrier builds a Retrier around the given Policy.
func NewRetrier(policy Policy) Retrier {
	return &retrier{policy: policy}
}

type retrier struct {
	policy     Policy
	retryCount int
}

func (r *retrier) Next(ctx context.Context) error {
	interval, err := r.policy.ComputeNextInterval(r.retryCount)
	if err != nil {
		return err
	}
	r.retryCount++

	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrOperationCanceled
	}
}

func (r *retrier) Reset() { r.retryCount = 0 }
