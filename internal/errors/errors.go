package errors

import (
	"errors"
	"fmt"
)

// SDKError is the base interface for all SDK errors.
type SDKError interface {
	error
	IsSDKError() bool
}

// Compile-time verification that all error types implement SDKError.
var (
	_ SDKError = (*ConnectionError)(nil)
	_ SDKError = (*MessageDecodeError)(nil)
	_ SDKError = (*InvalidRequestIDError)(nil)
	_ SDKError = (*ProcessError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.New("client already connected")

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one with New()")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrControllerStopped indicates the protocol controller has stopped.
	ErrControllerStopped = errors.New("protocol controller stopped")

	// ErrNoResponse indicates a request was abandoned before a reply arrived.
	// Awaiters resolve to this when their pending entry is cancelled or the
	// client shuts down while they are still waiting.
	ErrNoResponse = errors.New("no response received")

	// ErrDuplicateRequestID indicates a request id was registered while a
	// request with the same id was still awaiting its response.
	ErrDuplicateRequestID = errors.New("duplicate request id")

	// ErrOutputClosed indicates the outbound stream was closed and no further
	// lines can be written.
	ErrOutputClosed = errors.New("output closed")
)

// ConnectionError indicates failure to connect the transport.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect transport: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsSDKError implements SDKError.
func (e *ConnectionError) IsSDKError() bool { return true }

// MessageDecodeError indicates an inbound line could not be decoded into a
// message. This error preserves the original raw data that failed to parse.
type MessageDecodeError struct {
	RawData string
	Err     error
}

func (e *MessageDecodeError) Error() string {
	return fmt.Sprintf("failed to decode message: %v", e.Err)
}

func (e *MessageDecodeError) Unwrap() error {
	return e.Err
}

// IsSDKError implements SDKError.
func (e *MessageDecodeError) IsSDKError() bool { return true }

// InvalidRequestIDError indicates a wire id was neither an integer nor a
// string.
type InvalidRequestIDError struct {
	Raw string
}

func (e *InvalidRequestIDError) Error() string {
	return fmt.Sprintf("invalid request id %s: want integer or string", e.Raw)
}

// IsSDKError implements SDKError.
func (e *InvalidRequestIDError) IsSDKError() bool { return true }

// ProcessError indicates a spawned peer process exited abnormally. Stderr
// carries the process's captured error output.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("peer process failed (exit %d): %s", e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("peer process failed (exit %d)", e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsSDKError implements SDKError.
func (e *ProcessError) IsSDKError() bool { return true }
