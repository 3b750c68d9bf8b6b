package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/omegga-sdk-go/internal/config"
	"github.com/wagiedev/omegga-sdk-go/internal/errors"
)

const (
	// maxScanTokenSize is the maximum buffer size for reading peer output lines.
	maxScanTokenSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (the callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded
	// memory usage.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
)

// Command describes the peer process to spawn.
type Command struct {
	// Name is the command to run, resolved against PATH if not absolute.
	Name string
	// Args are the command arguments.
	Args []string
	// Dir is the working directory. Empty means inherit.
	Dir string
	// Env is the environment. Nil means inherit.
	Env []string
	// Stderr, when set, receives each stderr line as the peer emits it.
	// The most recent output is also buffered for error reporting.
	Stderr func(string)
}

// Transport implements config.Transport by spawning the peer as a child
// process and speaking lines over its stdin and stdout.
type Transport struct {
	log     *slog.Logger
	command Command

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu           sync.Mutex // Protects stdin writes and state below
	closing      bool       // Whether Close() has been called (intentional shutdown)
	outputClosed bool       // Whether the peer's stdin was closed
}

// Compile-time verification that Transport implements the Transport interface.
var _ config.Transport = (*Transport)(nil)

// New creates a transport that will spawn the given command on Start.
//
// The logger is used for operation tracking and debugging. It will receive
// debug, info, warn, and error messages during transport operations.
func New(log *slog.Logger, command Command) *Transport {
	return &Transport{
		log:     log.With("component", "subprocess_transport"),
		command: command,
	}
}

// Start spawns the peer process and wires up its pipes.
//
// The process outlives the given context; lifetime is managed through
// EndOutput and Close.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t.log.Info("Spawning peer process", "name", t.command.Name)

	//nolint:gosec // G204: the harness decides what to spawn
	cmd := exec.Command(t.command.Name, t.command.Args...)
	cmd.Dir = t.command.Dir
	cmd.Env = t.command.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return fmt.Errorf("stdin pipe: %w", err)
	}

	t.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return fmt.Errorf("stdout pipe: %w", err)
	}

	t.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return fmt.Errorf("stderr pipe: %w", err)
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start peer process", "error", err)

		return fmt.Errorf("start process: %w", err)
	}

	t.cmd = cmd
	t.log.Info("Peer process started", "pid", cmd.Process.Pid)

	return nil
}

// ReadLines reads newline-delimited records from the peer's stdout.
//
// This method starts a goroutine that scans stdout line by line and sends
// each line, stripped of its newline, to the lines channel. A second
// goroutine drains stderr, buffering it for error reporting and feeding
// the Stderr callback when one is set.
//
// When stdout ends the goroutine reaps the process. An abnormal exit is
// reported as a ProcessError carrying the exit code and captured stderr,
// unless Close initiated the shutdown. The goroutine closes both channels
// when it exits.
func (t *Transport) ReadLines(ctx context.Context) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errs := make(chan error, 1)

	var stderrWg sync.WaitGroup

	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	// Stderr must be drained before Wait() reaps the process.
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	stderrWg.Go(func() {
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.command.Stderr != nil {
				t.command.Stderr(line)
			}
		}

		// Process exit closes the pipe; scanner errors here are expected
		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(lines)
		defer close(errs)
		defer t.log.Debug("ReadLines goroutine stopped")

		scanner := bufio.NewScanner(t.stdout)
		// Set large buffer for big messages
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		lineCount := 0

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				t.log.Debug("Context cancelled during scan", "error", ctx.Err())

				errs <- ctx.Err()

				t.reapAsync(&stderrWg)

				return
			default:
			}

			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			// Scanner reuses its buffer, so hand consumers their own copy
			line := make([]byte, len(raw))
			copy(line, raw)

			lineCount++
			t.log.Debug("Received line from peer", "line_count", lineCount, "line_len", len(line))

			select {
			case lines <- line:
			case <-ctx.Done():
				t.log.Debug("Context cancelled during line send", "error", ctx.Err())

				errs <- ctx.Err()

				t.reapAsync(&stderrWg)

				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error while reading peer output", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)
		}

		stderrWg.Wait()

		t.log.Debug("Waiting for peer process to exit")

		if err := t.cmd.Wait(); err != nil {
			t.mu.Lock()
			isClosing := t.closing
			t.mu.Unlock()

			if isClosing {
				t.log.Debug("Peer process terminated during shutdown")

				return
			}

			stderrMu.Lock()

			stderrOutput := stderrBuffer.String()

			stderrMu.Unlock()

			exitCode := 0

			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			t.log.Error("Peer process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

			errs <- &errors.ProcessError{
				ExitCode: exitCode,
				Stderr:   stderrOutput,
				Err:      err,
			}
		} else {
			t.log.Info("Peer process exited cleanly")
		}
	}()

	return lines, errs
}

// WriteLine writes line plus a trailing newline to the peer's stdin.
//
// The write happens as a single Write call under the transport lock, so
// concurrent callers can never interleave bytes within a line. The method
// respects context cancellation even during blocking writes.
//
// If the context is cancelled during a blocked write, stdin is closed to
// unblock the goroutine. Subsequent calls will return ErrOutputClosed.
func (t *Transport) WriteLine(ctx context.Context, line []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrTransportNotConnected
	}

	if t.outputClosed {
		return errors.ErrOutputClosed
	}

	// Check context before starting
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Writing line to peer", "line_len", len(line))

	// Append the newline to a copy so the caller's backing array is never
	// mutated through spare capacity
	data := make([]byte, len(line)+1)
	copy(data, line)
	data[len(line)] = '\n'

	// Write in goroutine to respect context cancellation
	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write line to peer", "error", err)

			return fmt.Errorf("write line: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing peer stdin")
		// Close stdin to unblock the blocked Write. A half-written line
		// cannot be completed, so the stream is poisoned either way.
		t.closeOutputLocked()
		// Wait for goroutine to exit with timeout to prevent leak
		select {
		case <-done:
			// Write goroutine exited cleanly
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// EndOutput closes the peer's stdin to signal that no more lines will be
// sent.
//
// The peer sees EOF on its read side and is expected to finish up and
// exit. Its stdout stays open, so responses to earlier requests can still
// arrive.
func (t *Transport) EndOutput() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outputClosed {
		return nil
	}

	t.log.Debug("Ending output stream")

	t.closeOutputLocked()

	return nil
}

// IsReady checks if the transport is ready for communication.
//
// Returns true if the peer process is running and its stdin is open.
func (t *Transport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && !t.closing
}

// Close terminates the peer process.
//
// Stdin is closed first to give a well-behaved peer its EOF; the process
// is then killed so Close never waits on a peer that ignores it. The
// ReadLines goroutine reaps the process. It's safe to call Close multiple
// times or on an already-terminated process.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return nil
	}

	t.closing = true
	t.log.Debug("Closing subprocess transport")

	t.closeOutputLocked()

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing peer process", "pid", t.cmd.Process.Pid)

		// The process may have exited already; that is not a failure
		if err := t.cmd.Process.Kill(); err != nil {
			t.log.Debug("Kill returned", "error", err)
		}
	}

	return nil
}

// reapAsync collects the process exit in the background once stderr is
// drained. Read paths that stop before the peer has exited use this so a
// later kill does not leave the process unreaped.
func (t *Transport) reapAsync(stderrWg *sync.WaitGroup) {
	go func() {
		stderrWg.Wait()

		_ = t.cmd.Wait()
	}()
}

// closeOutputLocked closes the peer's stdin if possible. Callers must
// hold mu.
func (t *Transport) closeOutputLocked() {
	if t.outputClosed {
		return
	}

	t.outputClosed = true

	if t.stdin != nil {
		if err := t.stdin.Close(); err != nil {
			t.log.Debug("Stdin close returned", "error", err)
		}
	}
}
