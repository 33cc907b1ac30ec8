package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-run/nexus/internal/core"
)

type scriptedTransport struct {
	exitCodes []int
	errs      []error
	calls     int32
	existsMap map[string]bool
}

func (s *scriptedTransport) Exec(_ context.Context, _ core.Host, _ string, _ time.Duration) (string, int, error) {
	i := int(atomic.AddInt32(&s.calls, 1)) - 1
	if i >= len(s.exitCodes) {
		i = len(s.exitCodes) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return "out", s.exitCodes[i], err
}

func (s *scriptedTransport) Probe(_ context.Context, _ core.Host, _ string, _ time.Duration) (int, error) {
	return 0, nil
}

func (s *scriptedTransport) Exists(_ context.Context, _ core.Host, path string) (bool, error) {
	return s.existsMap[path], nil
}

func TestCommandRunnerSucceedsFirstTry(t *testing.T) {
	tr := &scriptedTransport{exitCodes: []int{0}}
	cr := NewCommandRunner(tr, core.DefaultDefaults(), nil)
	res := cr.Run(context.Background(), core.Command{Shell: "echo hi"}, core.LocalHost, nil, "t")
	assert.Equal(t, core.StatusOK, res.Status)
	assert.Equal(t, 1, res.Attempts)
}

func TestCommandRunnerRetriesThenSucceeds(t *testing.T) {
	tr := &scriptedTransport{exitCodes: []int{1, 0, 0}}
	cmd := core.Command{Shell: "flaky", Retries: 2, RetryDelayMS: 5}
	cr := NewCommandRunner(tr, core.DefaultDefaults(), nil)
	res := cr.Run(context.Background(), cmd, core.LocalHost, nil, "t")
	assert.Equal(t, core.StatusOK, res.Status)
	assert.Equal(t, 2, res.Attempts)
}

func TestCommandRunnerExhaustsRetries(t *testing.T) {
	tr := &scriptedTransport{exitCodes: []int{1, 1, 1}}
	cmd := core.Command{Shell: "always fails", Retries: 2, RetryDelayMS: 2}
	cr := NewCommandRunner(tr, core.DefaultDefaults(), nil)
	res := cr.Run(context.Background(), cmd, core.LocalHost, nil, "t")
	assert.Equal(t, core.StatusError, res.Status)
	assert.Equal(t, 3, res.Attempts, "attempts must equal retries+1")
}

func TestCommandRunnerSkipViaCreates(t *testing.T) {
	tr := &scriptedTransport{exitCodes: []int{0}, existsMap: map[string]bool{"/foo": true}}
	cmd := core.Command{Shell: "mkdir /foo", Creates: "/foo"}
	cr := NewCommandRunner(tr, core.DefaultDefaults(), nil)
	res := cr.Run(context.Background(), cmd, core.LocalHost, nil, "t")
	assert.Equal(t, core.StatusSkipped, res.Status)
	assert.Equal(t, 0, res.Attempts)
	assert.EqualValues(t, 0, res.DurationMS)
	assert.EqualValues(t, 0, tr.calls, "a skipped command must not consume an exec call")
}

func TestCommandRunnerCancellation(t *testing.T) {
	tr := &scriptedTransport{exitCodes: []int{1, 1, 1, 1}}
	cmd := core.Command{Shell: "slow", Retries: 3, RetryDelayMS: 50}
	cr := NewCommandRunner(tr, core.DefaultDefaults(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res := cr.Run(ctx, cmd, core.LocalHost, nil, "t")
	assert.Equal(t, core.StatusError, res.Status)
	assert.Equal(t, core.ReasonCancelled, res.Reason)
}

func TestWrapPrivilegeSudo(t *testing.T) {
	got := wrapPrivilege("echo hi", core.Host{}, true, "")
	require.Contains(t, got, "sudo -n")
}

func TestWrapPrivilegeRunAsUser(t *testing.T) {
	got := wrapPrivilege("echo hi", core.Host{}, false, "deploy")
	require.Contains(t, got, "sudo -u deploy")
}

func TestWrapPrivilegeSu(t *testing.T) {
	h := core.Host{Become: true, BecomeMethod: core.BecomeSu, BecomeUser: "root"}
	got := wrapPrivilege("echo hi", h, false, "")
	require.Contains(t, got, "su root -c")
}

func TestWrapPrivilegeDoas(t *testing.T) {
	h := core.Host{Become: true, BecomeMethod: core.BecomeDoas}
	got := wrapPrivilege("echo hi", h, false, "")
	require.Contains(t, got, "doas --")
}

func TestWrapPrivilegeNoEscalation(t *testing.T) {
	got := wrapPrivilege("echo hi", core.Host{}, false, "")
	assert.Equal(t, "echo hi", got)
}
