package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/executor/local"
)

func TestRunSimpleCommand(t *testing.T) {
	e := local.New()
	res, err := e.Run(context.Background(), "echo hello", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.CombinedOutput, "hello")
}

func TestRunMergesStderrIntoStdout(t *testing.T) {
	e := local.New()
	res, err := e.Run(context.Background(), "echo out; echo err 1>&2", time.Second)
	require.NoError(t, err)
	assert.Contains(t, res.CombinedOutput, "out")
	assert.Contains(t, res.CombinedOutput, "err")
}

func TestRunNonZeroExit(t *testing.T) {
	e := local.New()
	res, err := e.Run(context.Background(), "exit 3", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRunTimeout(t *testing.T) {
	e := local.New()
	_, err := e.Run(context.Background(), "sleep 5", 20*time.Millisecond)
	require.ErrorIs(t, err, local.ErrTimeout)
}

func TestExists(t *testing.T) {
	e := local.New()
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))

	ok, err := e.Exists(context.Background(), core.LocalHost, p)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Exists(context.Background(), core.LocalHost, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProbeReturnsExitCode(t *testing.T) {
	e := local.New()
	code, err := e.Probe(context.Background(), core.LocalHost, "exit 7", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

type collectSink struct {
	chunks   []byte
	exitCode int
	err      error
}

func (c *collectSink) Chunk(p []byte)          { c.chunks = append(c.chunks, p...) }
func (c *collectSink) Done(code int, err error) { c.exitCode, c.err = code, err }

func TestStreamDeliversChunksAndExit(t *testing.T) {
	e := local.New()
	sink := &collectSink{}
	err := e.Stream(context.Background(), "echo hi", time.Second, sink)
	require.NoError(t, err)
	assert.Contains(t, string(sink.chunks), "hi")
	assert.Equal(t, 0, sink.exitCode)
}
