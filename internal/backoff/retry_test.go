package backoff_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-run/nexus/internal/backoff"
)

func TestJitterExponentialPolicyBounds(t *testing.T) {
	base := 10 * time.Millisecond
	p := backoff.NewJitterExponentialPolicy(base, 3)

	for n := 0; n < 3; n++ {
		interval, err := p.ComputeNextInterval(n)
		require.NoError(t, err)
		min := time.Duration(float64(base) * 0.8 * pow2(n))
		max := time.Duration(float64(base) * 1.2 * pow2(n))
		assert.GreaterOrEqual(t, interval, min)
		assert.LessOrEqual(t, interval, max)
	}

	_, err := p.ComputeNextInterval(3)
	assert.ErrorIs(t, err, backoff.ErrRetriesExhausted)
}

func pow2(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 2
	}
	return v
}

func TestRetrierNextWaitsAndExhausts(t *testing.T) {
	p := backoff.NewJitterExponentialPolicy(5*time.Millisecond, 1)
	r := backoff.NewRetrier(p)

	require.NoError(t, r.Next(context.Background()))
	err := r.Next(context.Background())
	assert.ErrorIs(t, err, backoff.ErrRetriesExhausted)
}

func TestRetrierNextCancellation(t *testing.T) {
	p := backoff.NewJitterExponentialPolicy(time.Hour, 0)
	r := backoff.NewRetrier(p)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := r.Next(ctx)
	assert.ErrorIs(t, err, backoff.ErrOperationCanceled)
}

func TestRetrierReset(t *testing.T) {
	p := backoff.NewJitterExponentialPolicy(1*time.Millisecond, 1)
	r := backoff.NewRetrier(p)
	require.NoError(t, r.Next(context.Background()))
	r.Reset()
	require.NoError(t, r.Next(context.Background()))
}
