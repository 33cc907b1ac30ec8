package guard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/guard"
	"github.com/nexus-run/nexus/internal/predicate"
)

type fakeProber struct {
	exitCode int
	err      error
	called   bool
}

func (f *fakeProber) Probe(context.Context, core.Host, string, time.Duration) (int, error) {
	f.called = true
	return f.exitCode, f.err
}

type fakePaths struct{ exists map[string]bool }

func (f fakePaths) Exists(_ context.Context, _ core.Host, path string) (bool, error) {
	return f.exists[path], nil
}

func TestEvaluateWhenFalseSkips(t *testing.T) {
	cmd := core.Command{
		Shell: "mkdir /foo",
		When:  predicate.Literal{Value: false},
	}
	d := guard.Evaluate(context.Background(), cmd, core.LocalHost, nil, &fakeProber{}, fakePaths{})
	assert.True(t, d.Skip)
}

func TestEvaluateCreatesSkipsWhenPathExists(t *testing.T) {
	cmd := core.Command{Shell: "mkdir /foo", Creates: "/foo"}
	paths := fakePaths{exists: map[string]bool{"/foo": true}}
	prober := &fakeProber{}
	d := guard.Evaluate(context.Background(), cmd, core.LocalHost, nil, prober, paths)
	assert.True(t, d.Skip)
	assert.Contains(t, d.Reason, "creates")
	assert.False(t, prober.called)
}

func TestEvaluateRemovesSkipsWhenPathAbsent(t *testing.T) {
	cmd := core.Command{Shell: "rm /foo", Removes: "/foo"}
	paths := fakePaths{exists: map[string]bool{}}
	d := guard.Evaluate(context.Background(), cmd, core.LocalHost, nil, &fakeProber{}, paths)
	assert.True(t, d.Skip)
	assert.Contains(t, d.Reason, "removes")
}

func TestEvaluateOnlyIfSkipsOnNonZero(t *testing.T) {
	cmd := core.Command{Shell: "echo hi", OnlyIf: "test -f /x"}
	prober := &fakeProber{exitCode: 1}
	d := guard.Evaluate(context.Background(), cmd, core.LocalHost, nil, prober, fakePaths{})
	assert.True(t, d.Skip)
	assert.True(t, prober.called)
}

func TestEvaluateUnlessSkipsOnZero(t *testing.T) {
	cmd := core.Command{Shell: "echo hi", Unless: "test -f /x"}
	prober := &fakeProber{exitCode: 0}
	d := guard.Evaluate(context.Background(), cmd, core.LocalHost, nil, prober, fakePaths{})
	assert.True(t, d.Skip)
}

func TestEvaluateRunsWhenNoGuardsMatch(t *testing.T) {
	cmd := core.Command{Shell: "echo hi"}
	d := guard.Evaluate(context.Background(), cmd, core.LocalHost, nil, &fakeProber{exitCode: 1}, fakePaths{})
	assert.False(t, d.Skip)
}

func TestEvaluateOrderCreatesBeforeOnlyIf(t *testing.T) {
	cmd := core.Command{Shell: "echo hi", Creates: "/foo", OnlyIf: "false"}
	paths := fakePaths{exists: map[string]bool{"/foo": true}}
	prober := &fakeProber{exitCode: 1}
	d := guard.Evaluate(context.Background(), cmd, core.LocalHost, nil, prober, paths)
	assert.True(t, d.Skip)
	assert.Contains(t, d.Reason, "creates")
	assert.False(t, prober.called, "onlyif probe should not run once creates already decided skip")
}
