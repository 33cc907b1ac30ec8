package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/predicate"
)

type fakeRouter struct{ transport Transport }

func (f fakeRouter) For(core.Host) Transport { return f.transport }

func TestTaskRunnerResolvesLocalOK(t *testing.T) {
	cfg := core.Config{
		Tasks:    map[string]core.Task{"t": {Name: "t", On: "local", Commands: []core.Command{{Shell: "echo hi"}}}},
		Defaults: core.DefaultDefaults(),
	}
	router := fakeRouter{transport: &scriptedTransport{exitCodes: []int{0}}}
	tr := NewTaskRunner(cfg, router, nil, nil, nil, false, 0)

	res := tr.Run(context.Background(), cfg.Tasks["t"])
	assert.Equal(t, core.StatusOK, res.Status)
	require.Len(t, res.HostResults, 1)
	assert.Equal(t, core.LocalHost.Name, res.HostResults[0].Host)
}

func TestTaskRunnerSkipsWhenFalse(t *testing.T) {
	cfg := core.Config{
		Tasks: map[string]core.Task{
			"t": {Name: "t", On: "local", Commands: []core.Command{{Shell: "echo hi"}}, When: predicate.Literal{Value: false}},
		},
		Defaults: core.DefaultDefaults(),
	}
	router := fakeRouter{transport: &scriptedTransport{exitCodes: []int{0}}}
	tr := NewTaskRunner(cfg, router, nil, nil, nil, false, 0)

	res := tr.Run(context.Background(), cfg.Tasks["t"])
	assert.True(t, res.Skipped)
	assert.Equal(t, core.StatusOK, res.Status)
	assert.Empty(t, res.HostResults)
}

func TestTaskRunnerNoHostsError(t *testing.T) {
	cfg := core.Config{
		Tasks:    map[string]core.Task{"t": {Name: "t", On: "ghost-group"}},
		Defaults: core.DefaultDefaults(),
	}
	router := fakeRouter{transport: &scriptedTransport{exitCodes: []int{0}}}
	tr := NewTaskRunner(cfg, router, nil, nil, nil, false, 0)

	res := tr.Run(context.Background(), cfg.Tasks["t"])
	assert.Equal(t, core.StatusError, res.Status)
}

func TestTaskRunnerAggregatesHostFailure(t *testing.T) {
	cfg := core.Config{
		Hosts: map[string]core.Host{
			"h1": {Name: "h1"}, "h2": {Name: "h2"},
		},
		Groups: map[string]core.HostGroup{
			"web": {Name: "web", Hosts: []string{"h1", "h2"}},
		},
		Tasks: map[string]core.Task{
			"t": {Name: "t", On: "web", Strategy: core.StrategyParallel, Commands: []core.Command{{Shell: "echo hi"}}},
		},
		Defaults: core.DefaultDefaults(),
	}
	router := fakeRouter{transport: &scriptedTransport{exitCodes: []int{0, 1}}}
	tr := NewTaskRunner(cfg, router, nil, nil, nil, false, 0)

	res := tr.Run(context.Background(), cfg.Tasks["t"])
	assert.Equal(t, core.StatusError, res.Status)
	assert.Len(t, res.HostResults, 2)
}
