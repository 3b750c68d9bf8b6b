package omegga

import "github.com/wagiedev/omegga-sdk-go/internal/errors"

// Re-export error types from internal package

// SDKError is the base interface for all SDK errors.
type SDKError = errors.SDKError

// ConnectionError indicates failure to connect the transport.
type ConnectionError = errors.ConnectionError

// MessageDecodeError indicates an inbound line could not be decoded.
type MessageDecodeError = errors.MessageDecodeError

// InvalidRequestIDError indicates a wire id was neither an integer nor a string.
type InvalidRequestIDError = errors.InvalidRequestIDError

// ProcessError indicates a spawned peer process exited abnormally.
type ProcessError = errors.ProcessError

// Re-export sentinel errors from internal package.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.ErrClientNotConnected

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.ErrClientAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrControllerStopped indicates the protocol controller has stopped.
	ErrControllerStopped = errors.ErrControllerStopped

	// ErrNoResponse indicates a request was abandoned before a reply arrived.
	ErrNoResponse = errors.ErrNoResponse

	// ErrDuplicateRequestID indicates a request id collided with one still
	// awaiting its response.
	ErrDuplicateRequestID = errors.ErrDuplicateRequestID

	// ErrOutputClosed indicates the outbound stream was closed.
	ErrOutputClosed = errors.ErrOutputClosed
)
