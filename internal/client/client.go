package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wagiedev/omegga-sdk-go/internal/config"
	"github.com/wagiedev/omegga-sdk-go/internal/errors"
	"github.com/wagiedev/omegga-sdk-go/internal/protocol"
	"github.com/wagiedev/omegga-sdk-go/internal/rpc"
	"github.com/wagiedev/omegga-sdk-go/internal/stdio"
)

const (
	// defaultMessageBufferSize is the buffer size for the messages channel.
	defaultMessageBufferSize = 10
)

// Client implements the plugin-side RPC client.
type Client struct {
	log        *slog.Logger
	transport  config.Transport
	controller *protocol.Controller
	options    *config.Options

	// Message channel for data flow
	messages chan rpc.Message

	// Fatal error storage (replaces error channel)
	errMu    sync.RWMutex
	fatalErr error

	// Errgroup for goroutine management
	eg *errgroup.Group

	// Lifecycle management
	mu        sync.Mutex
	done      chan struct{}
	doneOnce  sync.Once // done closes on Close() or when the read loop exits
	connected bool
	closed    bool      // Tracks if Close() has been called
	closeOnce sync.Once // Ensures Close() only runs once
}

// New creates a new client.
//
// The client is not connected after creation. Call Start() with options to
// connect.
func New() *Client {
	return &Client{
		messages: make(chan rpc.Message, defaultMessageBufferSize),
		done:     make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Client) closeDone() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// setFatalError stores the first fatal error encountered.
func (c *Client) setFatalError(err error) {
	if err == nil {
		return
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}
}

// getFatalError returns the stored fatal error, if any.
func (c *Client) getFatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// isConnected returns true if the client is connected.
// This method is safe to call from any goroutine.
func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// initializeCore performs common client initialization.
// Caller must hold c.mu lock. Lock is held on return.
func (c *Client) initializeCore(ctx context.Context, options *config.Options) error {
	// Default to empty options if nil
	if options == nil {
		options = &config.Options{}
	}

	// Extract logger from options, defaulting to a no-op logger
	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.log = log.With("component", "client")

	// Store options for later inspection
	c.options = options

	// Create or use injected transport
	var transport config.Transport

	if options.Transport != nil {
		transport = options.Transport

		c.log.Debug("Using injected custom transport")
	} else {
		// Default to the process's own stdin/stdout, the host side of the
		// plugin pipe
		transport = stdio.New(c.log)
	}

	if err := transport.Start(ctx); err != nil {
		return &errors.ConnectionError{Err: err}
	}

	c.transport = transport

	// Outbound throttle from options; zero rate means unthrottled
	var limiter *rate.Limiter

	if options.WriteRate > 0 {
		burst := options.WriteBurst
		if burst < 1 {
			burst = 1
		}

		limiter = rate.NewLimiter(rate.Limit(options.WriteRate), burst)
	}

	// Create protocol controller for bidirectional communication
	c.controller = protocol.NewController(c.log, transport, limiter, options.QueueCapacity)

	// Install option handlers and subscriptions before the controller
	// starts reading, so the host's immediate init request cannot slip past
	// them onto the event stream.
	for method, h := range options.Handlers {
		c.controller.RegisterHandler(method, nil, h)
	}

	for method, fns := range options.Subscriptions {
		for _, fn := range fns {
			c.controller.Subscribe(method, newToken(), fn)
		}
	}

	if err := c.controller.Start(ctx); err != nil {
		transport.Close()

		return fmt.Errorf("start protocol controller: %w", err)
	}

	return nil
}

// Start establishes the connection to the host.
//
// This method starts the transport, wires the protocol controller, and
// begins routing inbound messages. Returns ConnectionError if the transport
// fails to start.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if c.connected {
		return errors.ErrClientAlreadyConnected
	}

	if err := c.initializeCore(ctx, options); err != nil {
		return err
	}

	c.log.Info("Starting client")

	// Create errgroup with background context for goroutine management.
	// We use context.Background() instead of the caller's ctx because:
	// 1. The caller's ctx may carry a connect timeout
	// 2. When that timeout expires, it would kill readLoop()
	// 3. The client should remain connected until explicitly closed via Close()
	// 4. The c.done channel provides explicit shutdown signaling
	var egCtx context.Context

	c.eg, egCtx = errgroup.WithContext(context.Background())

	// Start read loop using errgroup
	c.eg.Go(func() error {
		return c.readLoop(egCtx)
	})

	c.connected = true
	c.log.Info("Client started successfully")

	return nil
}

// readLoop routes messages from the controller to the events channel.
// The controller is the sole reader from the transport - it resolves
// responses, runs handlers and subscriptions, and forwards everything
// unclaimed through its Messages() channel.
// Returns error if a fatal error occurs, nil on normal completion.
func (c *Client) readLoop(ctx context.Context) error {
	defer c.log.Debug("Read loop stopped")
	defer c.closeDone()
	defer close(c.messages)

	raw := c.controller.Messages()

	for {
		select {
		case msg, ok := <-raw:
			if !ok {
				c.log.Debug("Message channel closed")

				// Check for fatal error from controller
				if err := c.controller.FatalError(); err != nil {
					c.log.Error("Transport error", "error", err)
					c.setFatalError(err)

					return err
				}

				return nil
			}

			select {
			case c.messages <- msg:
			case <-c.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-c.controller.Done():
			c.log.Debug("Controller stopped")

			// Forward fatal error if present
			if err := c.controller.FatalError(); err != nil {
				c.log.Error("Transport error", "error", err)
				c.setFatalError(err)

				return err
			}

			return nil

		case <-c.done:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Events returns the stream of inbound messages nothing else claimed:
// host requests with no registered handler and notifications with no
// subscription, in wire order.
//
// The channel is closed when the host's stream ends or the client closes.
// After it closes, Err() reports the fatal error if the stream ended
// abnormally.
func (c *Client) Events() <-chan rpc.Message {
	return c.messages
}

// Receive waits for and returns the next inbound message.
//
// This method blocks until a message is available, an error occurs, or the
// context is cancelled. Returns io.EOF when the stream ends normally.
func (c *Client) Receive(ctx context.Context) (rpc.Message, error) {
	// Check for stored fatal error first
	if err := c.getFatalError(); err != nil {
		return nil, err
	}

	select {
	case msg, ok := <-c.messages:
		if !ok {
			// Channel closed, wait for errgroup and check for errors
			if c.eg != nil {
				if err := c.eg.Wait(); err != nil {
					c.setFatalError(err)

					return nil, err
				}
			}

			return nil, io.EOF
		}

		return msg, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel that is closed when the client stops, either by
// Close() or because the host's stream ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the fatal error that stopped the client, if any. It is
// meaningful after Done() is closed.
func (c *Client) Err() error {
	return c.getFatalError()
}

// Request sends a request to the host and returns an awaiter for its
// response. params may be nil, a json.RawMessage, or any JSON-marshalable
// value.
//
// The awaiter has no timeout of its own; bound the wait with a context
// deadline or cancel it explicitly.
func (c *Client) Request(ctx context.Context, method string, params any) (*protocol.Awaiter, error) {
	if !c.isConnected() {
		return nil, errors.ErrClientNotConnected
	}

	raw, err := marshalValue(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	return c.controller.Request(ctx, method, raw)
}

// Call sends a request and waits for its response.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !c.isConnected() {
		return nil, errors.ErrClientNotConnected
	}

	raw, err := marshalValue(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	return c.controller.Call(ctx, method, raw)
}

// Notify sends a fire-and-forget notification to the host.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	raw, err := marshalValue(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	return c.controller.WriteNotification(ctx, method, raw)
}

// Respond answers a host request taken from Events() by id. Exactly one of
// result and rpcErr should be set.
func (c *Client) Respond(ctx context.Context, id rpc.ID, result any, rpcErr *rpc.Error) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	raw, err := marshalValue(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	return c.controller.WriteResponse(ctx, id, raw, rpcErr)
}

// RegisterHandler installs a handler for inbound host requests with the
// given method, replacing any previous handler. A non-nil schema validates
// params before the handler runs.
//
// Handlers the host may call immediately after startup should be passed in
// Options.Handlers instead, so they exist before the first line is read.
func (c *Client) RegisterHandler(method string, schema *jsonschema.Resolved, h rpc.Handler) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	c.controller.RegisterHandler(method, schema, h)

	return nil
}

// UnregisterHandler removes the handler for method. Later requests with
// that method flow to Events() instead.
func (c *Client) UnregisterHandler(method string) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	c.controller.UnregisterHandler(method)

	return nil
}

// On subscribes fn to notifications with the given method and returns the
// token that identifies the subscription for Off.
func (c *Client) On(method string, fn rpc.NotificationFunc) (string, error) {
	if !c.isConnected() {
		return "", errors.ErrClientNotConnected
	}

	token := newToken()
	c.controller.Subscribe(method, token, fn)

	return token, nil
}

// Off removes the subscription identified by token. It reports whether the
// token was known.
func (c *Client) Off(token string) bool {
	if !c.isConnected() {
		return false
	}

	return c.controller.Unsubscribe(token)
}

// Close terminates the connection and cleans up resources.
//
// After Close(), the client cannot be reused - create a new client with New().
// This method is safe to call multiple times.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		wasConnected := c.connected
		c.connected = false
		c.mu.Unlock()

		if !wasConnected {
			return
		}

		c.log.Info("Closing client")

		// Signal shutdown
		c.closeDone()

		// Stop protocol controller
		if c.controller != nil {
			c.controller.Stop()
		}

		// Close transport and capture error
		if c.transport != nil {
			closeErr = c.transport.Close()
		}

		// Wait for errgroup goroutines to complete
		if c.eg != nil {
			if err := c.eg.Wait(); err != nil && closeErr == nil {
				closeErr = err
			}
		}

		c.log.Info("Client closed")
	})

	return closeErr
}

// marshalValue converts an arbitrary params or result value to raw JSON.
// nil stays nil so the field is omitted on the wire, and raw JSON passes
// through untouched.
func marshalValue(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}

	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}

	return json.Marshal(v)
}

// newToken creates a unique subscription token using ULID.
func newToken() string {
	return ulid.Make().String()
}
