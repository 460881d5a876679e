package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Process represents a running ffmpeg process.
type Process struct {
	cmd    *exec.Cmd
	pid    int
	done   chan struct{}
	err    error
	stderr bytes.Buffer
}

// PID returns the process ID, or 0 if not started.
func (p *Process) PID() int {
	return p.pid
}

// Wait blocks until the process completes and returns any error.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Done returns a channel that closes when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Stderr returns the captured stderr output (complete after Wait).
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Start starts an ffmpeg process. Cancelling ctx kills it. When progress is
// non-nil, -progress output on stdout is parsed into it and the channel is
// closed once the process has exited.
func Start(ctx context.Context, args []string, progress chan<- Progress) (*Process, error) {
	cmd := exec.CommandContext(ctx, Binary, args...)

	p := &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	cmd.Stderr = &p.stderr

	var scanner *bufio.Scanner
	if progress != nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg: failed to create stdout pipe: %w", err)
		}
		scanner = bufio.NewScanner(stdout)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: failed to start: %w", err)
	}
	p.pid = cmd.Process.Pid

	go func() {
		defer close(p.done)
		if scanner != nil {
			ParseProgressOutput(scanner, progress)
		}
		if err := cmd.Wait(); err != nil {
			p.err = &Error{
				Args:   args,
				Stderr: p.stderr.String(),
				Err:    err,
			}
		}
		if progress != nil {
			close(progress)
		}
	}()

	return p, nil
}

// Error represents an ffmpeg execution error with context.
type Error struct {
	Args   []string
	Stderr string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	// Only the tail of stderr carries the actual failure
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	if tail := strings.Join(lines, "\n"); tail != "" {
		return fmt.Sprintf("ffmpeg: %v: %s", e.Err, tail)
	}
	return fmt.Sprintf("ffmpeg: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Command returns the command line that was executed.
func (e *Error) Command() string {
	return Binary + " " + strings.Join(e.Args, " ")
}
