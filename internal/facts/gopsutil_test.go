package facts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-run/nexus/internal/core"
)

type fakeProber struct {
	output   string
	exitCode int
	err      error
}

func (f fakeProber) Exec(context.Context, core.Host, string, time.Duration) (string, int, error) {
	return f.output, f.exitCode, f.err
}

func TestGopsutilProviderRemoteFacts(t *testing.T) {
	p := NewGopsutilProvider(fakeProber{output: `{"os":"linux","arch":"amd64","cpu_count":4,"hostname":"web1"}`})
	f, err := p.Facts(context.Background(), core.Host{Name: "web1", Hostname: "web1.internal"})
	require.NoError(t, err)
	assert.Equal(t, "linux", f["os"])
	assert.Equal(t, "amd64", f["arch"])
	assert.Equal(t, float64(4), f["cpu_count"])
	assert.Equal(t, "web1", f["hostname"])
}

func TestGopsutilProviderRemoteFactsNonZeroExit(t *testing.T) {
	p := NewGopsutilProvider(fakeProber{exitCode: 1})
	_, err := p.Facts(context.Background(), core.Host{Name: "web1", Hostname: "web1.internal"})
	assert.Error(t, err)
}

func TestGopsutilProviderLocal(t *testing.T) {
	p := NewGopsutilProvider(nil)
	f, err := p.Facts(context.Background(), core.LocalHost)
	require.NoError(t, err)
	assert.NotEmpty(t, f["os"])
	assert.NotEmpty(t, f["hostname"])
}
