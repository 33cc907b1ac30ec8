// Package ssh implements the SSH connection and per-host pool (§4.3):
// one authenticated session per Connection, reused across commands, and
// a bounded pool of Connections per host with idle cleanup.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/nexus-run/nexus/internal/core"
)

// FailureKind distinguishes why exec/connect failed, per spec §4.3.
type FailureKind string

const (
	FailureAuth      FailureKind = "auth"
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport"
	FailureSignal    FailureKind = "remote_signal"
)

// ExecError wraps a classified connection/exec failure.
type ExecError struct {
	Kind FailureKind
	Err  error
}

func (e *ExecError) Error() string { return fmt.Sprintf("ssh(%s): %v", e.Kind, e.Err) }
func (e *ExecError) Unwrap() error { return e.Err }

// HostKeyPolicy governs acceptance of unknown host keys.
type HostKeyPolicy int

const (
	HostKeyStrict HostKeyPolicy = iota
	HostKeyAcceptUnknown
)

// Result mirrors the local executor's {ok, combined_output, exit_code} shape.
type Result struct {
	CombinedOutput string
	ExitCode       int
}

// Connection owns one authenticated session to one host.
type Connection struct {
	client *ssh.Client
	host   core.Host
	closed bool
}

// Dial resolves authentication in the order explicit key -> agent ->
// interactive password (TTY only) -> fail, tunnels through the jump
// Connection when it is non-nil (dialing directly otherwise), and
// returns an authenticated Connection.
func Dial(ctx context.Context, host core.Host, password string, connectTimeout time.Duration, hostKeyPolicy HostKeyPolicy, jump *Connection) (*Connection, error) {
	authMethods, err := resolveAuth(host, password)
	if err != nil {
		return nil, &ExecError{Kind: FailureAuth, Err: err}
	}

	var cb ssh.HostKeyCallback
	if hostKeyPolicy == HostKeyAcceptUnknown {
		cb = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicit opt-in per spec §4.3
	} else {
		cb = knownHostsCallback()
	}

	cfg := &ssh.ClientConfig{
		User:            host.User,
		Auth:            authMethods,
		HostKeyCallback: cb,
		Timeout:         connectTimeout,
	}

	addr := net.JoinHostPort(host.Hostname, portOf(host))

	var client *ssh.Client
	if jump != nil {
		netConn, err := jump.client.Dial("tcp", addr)
		if err != nil {
			return nil, &ExecError{Kind: FailureTransport, Err: err}
		}
		connConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
		if err != nil {
			return nil, &ExecError{Kind: FailureAuth, Err: err}
		}
		client = ssh.NewClient(connConn, chans, reqs)
	} else {
		client, err = ssh.Dial("tcp", addr, cfg)
		if err != nil {
			return nil, classifyDialErr(err)
		}
	}

	return &Connection{client: client, host: host}, nil
}

func portOf(host core.Host) string {
	if host.Port == 0 {
		return "22"
	}
	return fmt.Sprintf("%d", host.Port)
}

func resolveAuth(host core.Host, password string) ([]ssh.AuthMethod, error) {
	if host.KeyPath != "" {
		key, err := os.ReadFile(host.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading private key %s: %w", host.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing private key %s: %w", host.KeyPath, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			ag := agent.NewClient(conn)
			return []ssh.AuthMethod{ssh.PublicKeysCallback(ag.Signers)}, nil
		}
	}

	if password != "" && isTTY(os.Stdin) {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}

	return nil, errors.New("no usable authentication method (key, agent, or interactive password)")
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func knownHostsCallback() ssh.HostKeyCallback {
	// Strict mode verifies against the user's ~/.ssh/known_hosts; if that
	// file cannot be read, every host key is rejected.
	if home, err := os.UserHomeDir(); err == nil {
		if cb, err := knownhosts.New(home + "/.ssh/known_hosts"); err == nil {
			return cb
		}
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		return fmt.Errorf("strict host key checking enabled and no known_hosts entry for %s", hostname)
	}
}

func classifyDialErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ExecError{Kind: FailureTimeout, Err: err}
	}
	return &ExecError{Kind: FailureTransport, Err: err}
}

// Exec runs one command under this connection's session, wrapping any
// combination of stdout/stderr into one stream per spec §4.2's contract.
func (c *Connection) Exec(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return Result{}, &ExecError{Kind: FailureTransport, Err: err}
	}
	defer func() { _ = session.Close() }()

	var buf bytes.Buffer
	session.Stdout = &buf
	session.Stderr = &buf

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case err := <-done:
		return classifyRunResult(buf.String(), err)
	case <-runCtx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		return Result{CombinedOutput: buf.String()}, &ExecError{Kind: FailureTimeout, Err: runCtx.Err()}
	}
}

func classifyRunResult(output string, err error) (Result, error) {
	if err == nil {
		return Result{CombinedOutput: output, ExitCode: 0}, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Signal() != "" {
			return Result{CombinedOutput: output}, &ExecError{Kind: FailureSignal, Err: err}
		}
		return Result{CombinedOutput: output, ExitCode: exitErr.ExitStatus()}, nil
	}
	return Result{CombinedOutput: output}, &ExecError{Kind: FailureTransport, Err: err}
}

// Probe implements guard.Prober.
func (c *Connection) Probe(ctx context.Context, _ core.Host, command string, timeout time.Duration) (int, error) {
	res, err := c.Exec(ctx, command, timeout)
	var execErr *ExecError
	if err != nil && !errors.As(err, &execErr) {
		return -1, err
	}
	return res.ExitCode, nil
}

// Exists implements guard.PathChecker over SFTP when available, falling
// back to a `test -e` probe if the SFTP subsystem is unavailable.
func (c *Connection) Exists(ctx context.Context, host core.Host, path string) (bool, error) {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		code, perr := c.Probe(ctx, host, fmt.Sprintf("test -e %q", path), 5*time.Second)
		if perr != nil {
			return false, perr
		}
		return code == 0, nil
	}
	defer func() { _ = client.Close() }()

	_, err = client.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Upload copies a local file to path on the remote host via SFTP.
func (c *Connection) Upload(localPath, remotePath string) error {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return fmt.Errorf("sftp: %w", err)
	}
	defer func() { _ = client.Close() }()

	local, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = local.Close() }()

	remote, err := client.Create(remotePath)
	if err != nil {
		return err
	}
	defer func() { _ = remote.Close() }()

	_, err = remote.ReadFrom(local)
	return err
}

// Download copies a remote file to localPath via SFTP.
func (c *Connection) Download(remotePath, localPath string) error {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return fmt.Errorf("sftp: %w", err)
	}
	defer func() { _ = client.Close() }()

	remote, err := client.Open(remotePath)
	if err != nil {
		return err
	}
	defer func() { _ = remote.Close() }()

	local, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = local.Close() }()

	_, err = remote.WriteTo(local)
	return err
}

// Close is idempotent.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Keepalive sends a no-op request to detect a half-dead session.
func (c *Connection) Keepalive() error {
	if c.client == nil {
		return nil
	}
	_, _, err := c.client.SendRequest("keepalive@nexus", true, nil)
	return err
}
