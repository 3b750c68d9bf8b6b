package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/wagiedev/omegga-sdk-go/internal/config"
	"github.com/wagiedev/omegga-sdk-go/internal/errors"
)

// maxScanTokenSize is the maximum buffer size for reading inbound lines.
const maxScanTokenSize = 1024 * 1024 // 1MB

// Transport implements config.Transport over a pair of byte streams, by
// default the process's own stdin and stdout. The host process on the other
// side of those streams is the peer.
//
// The transport moves whole lines and never looks inside them; decoding
// belongs to the protocol layer.
type Transport struct {
	log *slog.Logger
	r   io.Reader
	w   io.Writer

	mu           sync.Mutex // Protects writes and state below
	started      bool
	closing      bool // Whether Close() has been called (intentional shutdown)
	outputClosed bool // Whether the write side was closed (e.g., due to context cancellation)
}

// Compile-time verification that Transport implements the Transport interface.
var _ config.Transport = (*Transport)(nil)

// New creates a transport bound to the process's own stdin and stdout,
// which is how an Omegga host wires up a spawned plugin.
//
// The logger is used for operation tracking and debugging. It will receive
// debug, info, warn, and error messages during transport operations.
func New(log *slog.Logger) *Transport {
	return NewPipe(log, os.Stdin, os.Stdout)
}

// NewPipe creates a transport over an arbitrary reader and writer pair.
// Tests and subprocess harnesses use this to stand in for the host.
func NewPipe(log *slog.Logger, r io.Reader, w io.Writer) *Transport {
	return &Transport{
		log: log.With("component", "stdio_transport"),
		r:   r,
		w:   w,
	}
}

// Start marks the transport ready. The underlying streams already exist, so
// unlike a subprocess transport there is nothing to spawn here.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t.started = true
	t.log.Debug("Stdio transport started")

	return nil
}

// ReadLines reads newline-delimited records from the inbound stream.
//
// This method starts a goroutine that scans the stream line by line and
// sends each line, stripped of its newline, to the lines channel. Blank
// lines are skipped. The goroutine exits when:
//   - The inbound stream reaches EOF
//   - The context is cancelled
//   - An unrecoverable read error occurs
//
// Read errors are sent to the error channel. The goroutine closes both
// channels when it exits.
func (t *Transport) ReadLines(ctx context.Context) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		defer close(errs)
		defer t.log.Debug("ReadLines goroutine stopped")

		scanner := bufio.NewScanner(t.r)
		// Set large buffer for big messages
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		lineCount := 0

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				t.log.Debug("Context cancelled during scan", "error", ctx.Err())

				errs <- ctx.Err()

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

				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Error("Scanner error while reading peer input", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)

			return
		}

		t.log.Info("Peer input stream ended")
	}()

	return lines, errs
}

// WriteLine writes line plus a trailing newline to the outbound stream.
//
// The write happens as a single Write call under the transport lock, so
// concurrent callers can never interleave bytes within a line. The method
// respects context cancellation even during blocking writes.
//
// If the context is cancelled during a blocked write, the write side is
// closed to unblock the goroutine. Subsequent calls will return
// ErrOutputClosed.
func (t *Transport) WriteLine(ctx context.Context, line []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
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
		_, err := t.w.Write(data)
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
		t.log.Debug("Context cancelled during write, closing output")
		// Close the write side to unblock the blocked Write. A half-written
		// line cannot be completed, so the stream is poisoned either way.
		t.closeOutputLocked()
		// Wait for goroutine to exit with timeout to prevent leak
		select {
		case <-done:
			// Write goroutine exited cleanly
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after output close, potential leak")
		}

		return ctx.Err()
	}
}

// EndOutput closes the write side to signal that no more lines will be sent.
//
// For pipe-based transports the peer sees EOF on its read side. The inbound
// stream stays open, so responses to earlier requests can still arrive.
func (t *Transport) EndOutput() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outputClosed {
		return nil
	}

	t.log.Debug("Ending output stream")

	return t.closeOutputLocked()
}

// IsReady checks if the transport is ready for communication.
func (t *Transport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.started && !t.closing
}

// Close terminates the transport.
//
// Both streams are closed when they can be, which unblocks any pending
// reads. It's safe to call Close multiple times.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return nil
	}

	t.closing = true
	t.log.Debug("Closing stdio transport")

	err := t.closeOutputLocked()

	if closer, ok := t.r.(io.Closer); ok && !isProcessStream(t.r) {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}

// closeOutputLocked closes the write side if possible. Callers must hold mu.
//
// The process-wide std streams are never closed here; for those, marking the
// output closed is enough to stop further writes.
func (t *Transport) closeOutputLocked() error {
	if t.outputClosed {
		return nil
	}

	t.outputClosed = true

	if closer, ok := t.w.(io.Closer); ok && !isProcessStream(t.w) {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}

	return nil
}

// isProcessStream reports whether v is one of the process's own std streams.
func isProcessStream(v any) bool {
	return v == any(os.Stdin) || v == any(os.Stdout) || v == any(os.Stderr)
}
