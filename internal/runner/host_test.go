package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nexus-run/nexus/internal/core"
)

func TestRunHostCommandsStopsOnFirstError(t *testing.T) {
	tr := &scriptedTransport{exitCodes: []int{0, 1, 0}}
	cr := NewCommandRunner(tr, core.DefaultDefaults(), nil)
	cmds := []core.Command{{Shell: "a"}, {Shell: "b"}, {Shell: "c"}}

	res := RunHostCommands(context.Background(), cr, core.LocalHost, cmds, nil, false, "t")
	assert.Equal(t, core.StatusError, res.Status)
	assert.Len(t, res.Commands, 2, "third command must not run once continue_on_error is off")
}

func TestRunHostCommandsContinuesOnError(t *testing.T) {
	tr := &scriptedTransport{exitCodes: []int{0, 1, 0}}
	cr := NewCommandRunner(tr, core.DefaultDefaults(), nil)
	cmds := []core.Command{{Shell: "a"}, {Shell: "b"}, {Shell: "c"}}

	res := RunHostCommands(context.Background(), cr, core.LocalHost, cmds, nil, true, "t")
	assert.Equal(t, core.StatusError, res.Status, "a failing command still makes the host's final status error")
	assert.Len(t, res.Commands, 3, "continue_on_error lets later commands still run")
}

func TestRunHostCommandsAllOK(t *testing.T) {
	tr := &scriptedTransport{exitCodes: []int{0, 0}}
	cr := NewCommandRunner(tr, core.DefaultDefaults(), nil)
	cmds := []core.Command{{Shell: "a"}, {Shell: "b"}}

	res := RunHostCommands(context.Background(), cr, core.LocalHost, cmds, nil, false, "t")
	assert.Equal(t, core.StatusOK, res.Status)
}
