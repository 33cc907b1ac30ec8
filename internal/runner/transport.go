package runner

import (
	"context"
	"time"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/executor/local"
	sshexec "github.com/nexus-run/nexus/internal/executor/ssh"
)

// Transport is what the command runner needs from either the local
// executor or the SSH pool: run a command, probe it, and check a path.
// This is the seam that lets the rest of runner stay oblivious to
// whether a given host is local or remote.
type Transport interface {
	Exec(ctx context.Context, host core.Host, command string, timeout time.Duration) (output string, exitCode int, err error)
	Probe(ctx context.Context, host core.Host, command string, timeout time.Duration) (exitCode int, err error)
	Exists(ctx context.Context, host core.Host, path string) (bool, error)
}

// LocalTransport routes every host (there is only ever one: core.LocalHost)
// to the local executor.
type LocalTransport struct {
	Executor *local.Executor
}

func NewLocalTransport() *LocalTransport { return &LocalTransport{Executor: local.New()} }

func (t *LocalTransport) Exec(ctx context.Context, _ core.Host, command string, timeout time.Duration) (string, int, error) {
	res, err := t.Executor.Run(ctx, command, timeout)
	if err != nil {
		return res.CombinedOutput, res.ExitCode, err
	}
	return res.CombinedOutput, res.ExitCode, nil
}

func (t *LocalTransport) Probe(ctx context.Context, host core.Host, command string, timeout time.Duration) (int, error) {
	return t.Executor.Probe(ctx, host, command, timeout)
}

func (t *LocalTransport) Exists(ctx context.Context, host core.Host, path string) (bool, error) {
	return t.Executor.Exists(ctx, host, path)
}

// SSHTransport checks a session out of the per-host pool registry for
// every call, returning it when done.
type SSHTransport struct {
	Registry *sshexec.Registry
}

func NewSSHTransport(registry *sshexec.Registry) *SSHTransport {
	return &SSHTransport{Registry: registry}
}

func (t *SSHTransport) Exec(ctx context.Context, host core.Host, command string, timeout time.Duration) (string, int, error) {
	pool := t.Registry.Get(host)
	var output string
	var exitCode int
	err := pool.WithSession(ctx, func(conn *sshexec.Connection) error {
		res, err := conn.Exec(ctx, command, timeout)
		output, exitCode = res.CombinedOutput, res.ExitCode
		return err
	})
	return output, exitCode, err
}

func (t *SSHTransport) Probe(ctx context.Context, host core.Host, command string, timeout time.Duration) (int, error) {
	pool := t.Registry.Get(host)
	var code int
	err := pool.WithSession(ctx, func(conn *sshexec.Connection) error {
		var err error
		code, err = conn.Probe(ctx, host, command, timeout)
		return err
	})
	return code, err
}

func (t *SSHTransport) Exists(ctx context.Context, host core.Host, path string) (bool, error) {
	pool := t.Registry.Get(host)
	var exists bool
	err := pool.WithSession(ctx, func(conn *sshexec.Connection) error {
		var err error
		exists, err = conn.Exists(ctx, host, path)
		return err
	})
	return exists, err
}

// HostRouter picks the right Transport for a given host. Satisfied by
// *Router; tests substitute a fake to exercise TaskRunner without a real
// SSH connection.
type HostRouter interface {
	For(host core.Host) Transport
}

// Router picks LocalTransport for core.LocalHost and SSHTransport
// otherwise.
type Router struct {
	Local *LocalTransport
	SSH   *SSHTransport
}

func NewRouter(sshRegistry *sshexec.Registry) *Router {
	return &Router{Local: NewLocalTransport(), SSH: NewSSHTransport(sshRegistry)}
}

func (r *Router) For(host core.Host) Transport {
	if host.IsLocal() {
		return r.Local
	}
	return r.SSH
}
