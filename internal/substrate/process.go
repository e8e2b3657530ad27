package substrate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxLineSize bounds a single stdout line read by RunCommand.
const maxLineSize = 1024 * 1024

// Command creates an exec.Cmd in its own process group.
// Cancelling ctx sends SIGTERM to the whole group, giving the subprocess tree a chance
// to exit cleanly; a forced cancel of the owning task follows up with SIGKILL.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		return signalProcessGroup(cmd, syscall.SIGTERM)
	}
	cmd.WaitDelay = 2 * time.Second
	return cmd
}

// RunCommand starts cmd, records one heartbeat per stdout line and returns stdout.
//
// Both pipes are drained concurrently before cmd.Wait so that a chatty subprocess
// cannot fill a pipe buffer and deadlock. When ctx carries a process scope (it does
// inside substrate.Local) the subprocess is tracked for forced cancellation.
func RunCommand(ctx context.Context, cmd *exec.Cmd, heartbeat func()) ([]byte, error) {
	if heartbeat == nil {
		heartbeat = func() {}
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	if pm := processManagerFrom(ctx); pm != nil {
		pm.Track(cmd)
		defer pm.Untrack(cmd)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var g errgroup.Group

	g.Go(func() error {
		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			stdoutBuf.Write(scanner.Bytes())
			stdoutBuf.WriteByte('\n')
			heartbeat()
		}
		if err := scanner.Err(); err != nil {
			// Keep draining so the subprocess never blocks on a full pipe.
			_, _ = io.Copy(io.Discard, stdoutPipe)
			return fmt.Errorf("failed to read stdout: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		_, err := io.Copy(&stderrBuf, stderrPipe)
		return err
	})

	readErr := g.Wait()
	waitErr := cmd.Wait()

	stdout := stdoutBuf.Bytes()
	if waitErr != nil {
		return stdout, classifyExit(ctx, cmd, waitErr, stderrBuf.String())
	}
	if readErr != nil {
		return stdout, readErr
	}
	return stdout, nil
}

// classifyExit maps a failed cmd.Wait to the substrate taxonomy.
func classifyExit(ctx context.Context, cmd *exec.Cmd, waitErr error, stderr string) error {
	if ctx.Err() != nil {
		return fmt.Errorf("command interrupted: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return fmt.Errorf("%w: %s killed by signal %v", ErrCrashed, cmd.Path, status.Signal())
		}
	}

	stderr = strings.TrimSpace(stderr)
	if stderr != "" {
		return fmt.Errorf("command failed: %w (stderr: %s)", waitErr, stderr)
	}
	return fmt.Errorf("command failed: %w", waitErr)
}

// CommandWork returns a WorkFunc that runs name with args followed by the task input,
// treating every stdout line as a heartbeat. The result is the trimmed stdout.
func CommandWork(name string, args ...string) WorkFunc {
	return func(ctx context.Context, input any, heartbeat func()) (any, error) {
		argv := append(append([]string{}, args...), fmt.Sprint(input))
		out, err := RunCommand(ctx, Command(ctx, name, argv...), heartbeat)
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(string(out)), nil
	}
}

// signalProcessGroup sends sig to the process group led by cmd.
func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to signal process group: %w", err)
	}
	return nil
}

// ProcessManager tracks the subprocesses started on behalf of one task so that a
// forced cancel can terminate the whole tree.
type ProcessManager struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

// NewProcessManager creates an empty ProcessManager.
func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		procs: make(map[int]*exec.Cmd),
	}
}

// Track registers a started subprocess.
func (pm *ProcessManager) Track(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.procs[cmd.Process.Pid] = cmd
}

// Untrack removes a subprocess after cmd.Wait returns.
func (pm *ProcessManager) Untrack(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.procs, cmd.Process.Pid)
}

// KillAll sends SIGKILL to every tracked process group.
func (pm *ProcessManager) KillAll() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var errs []error
	for pid, cmd := range pm.procs {
		if err := signalProcessGroup(cmd, syscall.SIGKILL); err != nil {
			errs = append(errs, fmt.Errorf("failed to kill process %d: %w", pid, err))
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of tracked processes.
func (pm *ProcessManager) Count() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.procs)
}

type processManagerKey struct{}

func withProcessManager(ctx context.Context, pm *ProcessManager) context.Context {
	return context.WithValue(ctx, processManagerKey{}, pm)
}

func processManagerFrom(ctx context.Context) *ProcessManager {
	pm, _ := ctx.Value(processManagerKey{}).(*ProcessManager)
	return pm
}
