// Package config provides configuration types for the Omegga SDK.
package config

import "context"

// Transport moves newline-delimited records between the process and its
// peer. Implement this to run the client over something other than the
// process's own stdin/stdout (tests, pipes, subprocesses).
//
// The default implementation is stdio.Transport. Custom transports can be
// injected via Options.Transport.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any lines are read or written.
	Start(ctx context.Context) error

	// ReadLines returns channels for receiving raw inbound lines and read
	// errors. Lines are delivered without their trailing newline and the
	// transport never inspects their content. Both channels are closed when
	// the inbound stream ends.
	ReadLines(ctx context.Context) (<-chan []byte, <-chan error)

	// WriteLine emits line followed by a single newline as one write.
	// This method must be safe for concurrent use; concurrent calls may
	// interleave whole lines but never bytes within a line.
	WriteLine(ctx context.Context, line []byte) error

	// EndOutput signals that no more lines will be written. For pipe-based
	// transports this closes the write side so the peer sees EOF.
	EndOutput() error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}
