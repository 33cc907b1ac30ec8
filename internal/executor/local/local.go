// Package local implements the local executor (§4.2): runs one shell
// command in a child process, merging stderr into stdout, enforcing a
// wall-clock timeout by killing the process group on expiry.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/nexus-run/nexus/internal/core"
	"github.com/nexus-run/nexus/internal/shellsplit"
)

// ErrTimeout is returned when the command's wall clock expires.
var ErrTimeout = errors.New("local: command timed out")

// Result mirrors spec §4.2's {ok, combined_output, exit_code} /
// {error, :timeout} outcome shapes.
type Result struct {
	CombinedOutput string
	ExitCode       int
	TimedOut       bool
}

// Sink receives streamed output chunks from Stream. It must not block
// indefinitely; it runs on the executor's own goroutine.
type Sink interface {
	Chunk(p []byte)
	Done(exitCode int, err error)
}

// Executor runs commands on the local machine.
type Executor struct {
	// Env is an overlay applied on top of the current process environment.
	Env map[string]string
	Dir string
}

// New builds a local Executor with no environment overlay.
func New() *Executor { return &Executor{} }

// Run executes command and waits for completion or timeout.
func (e *Executor) Run(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := e.buildCmd(runCtx, command)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("local: spawn failed: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return resultFromWait(buf.String(), err)
	case <-runCtx.Done():
		killProcessGroup(cmd)
		<-done
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Result{CombinedOutput: buf.String(), TimedOut: true}, ErrTimeout
		}
		return Result{CombinedOutput: buf.String()}, runCtx.Err()
	}
}

// Stream behaves like Run but delivers output chunks to sink as they
// arrive, in addition to the final outcome.
func (e *Executor) Stream(ctx context.Context, command string, timeout time.Duration, sink Sink) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := e.buildCmd(runCtx, command)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("local: spawn failed: %w", err)
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 32*1024)
		for {
			n, err := pr.Read(buf)
			if n > 0 {
				sink.Chunk(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait(); _ = pw.Close() }()

	select {
	case err := <-waitDone:
		<-readDone
		_, code := resultFromWait("", err)
		sink.Done(code, classifyWaitErr(err))
		return nil
	case <-runCtx.Done():
		killProcessGroup(cmd)
		<-waitDone
		<-readDone
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			sink.Done(-1, ErrTimeout)
			return ErrTimeout
		}
		sink.Done(-1, runCtx.Err())
		return runCtx.Err()
	}
}

// Probe runs a guard probe command and returns only its exit code.
func (e *Executor) Probe(ctx context.Context, _ core.Host, command string, timeout time.Duration) (int, error) {
	res, err := e.Run(ctx, command, timeout)
	if err != nil {
		return -1, err
	}
	return res.ExitCode, nil
}

// Exists implements guard.PathChecker for the local host.
func (e *Executor) Exists(_ context.Context, _ core.Host, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (e *Executor) buildCmd(ctx context.Context, command string) *exec.Cmd {
	var cmd *exec.Cmd
	if argv, ok := shellsplit.Split(command); ok {
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", command)
	}
	if e.Dir != "" {
		cmd.Dir = e.Dir
	}
	if len(e.Env) > 0 {
		env := os.Environ()
		for k, v := range e.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	return cmd
}

func resultFromWait(output string, err error) (Result, error) {
	if err == nil {
		return Result{CombinedOutput: output, ExitCode: 0}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{CombinedOutput: output, ExitCode: exitErr.ExitCode()}, nil
	}
	return Result{CombinedOutput: output}, fmt.Errorf("local: %w", err)
}

func classifyWaitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
