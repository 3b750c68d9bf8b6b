package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/time/rate"

	"github.com/wagiedev/omegga-sdk-go/internal/errors"
	"github.com/wagiedev/omegga-sdk-go/internal/rpc"
)

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by the stdio transport but allows for testing
// with mock transports.
type Transport interface {
	ReadLines(ctx context.Context) (<-chan []byte, <-chan error)
	WriteLine(ctx context.Context, line []byte) error
}

// Controller manages bidirectional RPC traffic with the host.
//
// The Controller handles:
//   - Sending requests with unique wire ids and correlating their responses
//   - Invoking registered handlers for inbound host requests
//   - Running notification subscriptions on the dispatch path
//   - Queueing everything unclaimed for consumers via the Messages channel
//
// The Controller must be started with Start() before use and manages its own
// goroutines for reading, dispatching, and delivering messages.
type Controller struct {
	log       *slog.Logger
	transport Transport

	gen   *Generator
	table *Table

	// Outbound throttling; nil means unthrottled
	limiter *rate.Limiter

	// Handler registry for inbound requests
	handlersMu sync.RWMutex
	handlers   map[string]*registeredHandler

	// Notification subscriptions keyed by method, with a token index for
	// removal
	subsMu    sync.RWMutex
	subs      map[string][]*subscription
	subTokens map[string]string

	// Unclaimed messages parked between the read loop and consumers. The
	// queue is unbounded so a slow consumer can never stall dispatch.
	queueMu sync.Mutex
	queue   []rpc.Message
	kick    chan struct{}

	// Queue drain delivered to consumers
	messages chan rpc.Message

	// Cancels handler contexts on Stop
	opCancel context.CancelFunc

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce  sync.Once
	done       chan struct{}
	readExited chan struct{}
	wg         sync.WaitGroup
}

// registeredHandler pairs a handler with its optional params schema.
type registeredHandler struct {
	fn     rpc.Handler
	params *jsonschema.Resolved // nil skips validation
}

// subscription is one notification callback under its removal token.
type subscription struct {
	token string
	fn    rpc.NotificationFunc
}

// NewController creates a new protocol controller.
//
// The logger will receive debug, info, warn, and error messages during
// protocol operations. The transport must be connected before calling
// Start(). A nil limiter leaves outbound writes unthrottled. queueCapacity
// pre-sizes the event queue backing array and may be zero.
func NewController(
	log *slog.Logger,
	transport Transport,
	limiter *rate.Limiter,
	queueCapacity int,
) *Controller {
	return &Controller{
		log:        log.With("component", "protocol"),
		transport:  transport,
		gen:        NewGenerator(),
		table:      NewTable(),
		limiter:    limiter,
		handlers:   make(map[string]*registeredHandler, 10),
		subs:       make(map[string][]*subscription, 10),
		subTokens:  make(map[string]string, 10),
		queue:      make([]rpc.Message, 0, queueCapacity),
		kick:       make(chan struct{}, 1),
		messages:   make(chan rpc.Message),
		done:       make(chan struct{}),
		readExited: make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start begins reading lines from the transport and dispatching messages.
//
// This method spawns the read loop, which decodes and routes inbound
// traffic, and the pump loop, which delivers queued messages to consumers.
// Both stop when the context is cancelled, the peer's stream ends, or
// Stop is called.
//
// Register handlers and subscriptions before calling Start if the host may
// send their methods immediately; anything arriving earlier is parked on
// the event stream instead.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Debug("Starting protocol controller")

	opCtx, cancel := context.WithCancel(ctx)
	c.opCancel = cancel

	lines, errs := c.transport.ReadLines(ctx)

	c.wg.Go(func() {
		c.readLoop(opCtx, lines, errs)
	})
	c.wg.Go(func() {
		c.pumpLoop()
	})

	c.log.Info("Protocol controller started")

	return nil
}

// Stop gracefully shuts down the controller.
//
// This method signals both loops to stop, cancels handler contexts, and
// cancels every pending request so its waiter fails fast with
// ErrNoResponse instead of parking forever. It's safe to call Stop
// multiple times.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.closeDone()

	if c.opCancel != nil {
		c.opCancel()
	}

	c.table.CancelAll()
	c.wg.Wait()
	c.log.Info("Protocol controller stopped")
}

// Messages returns the stream of inbound messages nothing else claimed:
// requests with no registered handler and notifications with no
// subscription, in wire order.
//
// The controller acts as a multiplexer: responses resolve their pending
// requests, handled requests and subscribed notifications are consumed on
// the dispatch path, and everything else arrives here. The channel is
// closed once the peer's stream ends and the queue has drained, or when
// the controller stops. Use Done() and FatalError() to tell the two apart.
func (c *Controller) Messages() <-chan rpc.Message {
	return c.messages
}

// Pending reports the number of requests still awaiting a response.
func (c *Controller) Pending() int {
	return c.table.Len()
}

// Request allocates a wire id, registers it in the correlation table, and
// emits the request, in that order. Registering before writing closes the
// window where a fast peer could answer an id nobody is tracking yet.
//
// The returned awaiter resolves when the response arrives. It has no
// timeout of its own; bound the wait with a context deadline.
func (c *Controller) Request(
	ctx context.Context,
	method string,
	params json.RawMessage,
) (*Awaiter, error) {
	id := c.gen.Next()

	ch, err := c.table.Register(id)
	if err != nil {
		return nil, err
	}

	c.log.Debug("Sending request", "id", id, "method", method)

	if err := c.WriteRequest(ctx, id, method, params); err != nil {
		// The request never reached the peer; drop the entry so it cannot
		// linger.
		c.table.Cancel(id)
		c.log.Error("Failed to send request", "id", id, "error", err)

		return nil, fmt.Errorf("send request: %w", err)
	}

	return &Awaiter{id: id, ch: ch, table: c.table}, nil
}

// Call sends a request and waits for its response.
//
// An error response is returned as the *rpc.Error it carried. If the
// controller stops before a reply arrives, the transport's fatal error is
// surfaced when there is one and ErrControllerStopped otherwise.
func (c *Controller) Call(
	ctx context.Context,
	method string,
	params json.RawMessage,
) (json.RawMessage, error) {
	aw, err := c.Request(ctx, method, params)
	if err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-aw.ch:
		if !ok {
			return nil, errors.ErrNoResponse
		}

		if resp.Error != nil {
			c.log.Warn("Request returned error",
				"id", aw.id,
				"method", method,
				"code", resp.Error.Code,
			)

			return nil, resp.Error
		}

		c.log.Debug("Received response", "id", aw.id)

		return resp.Result, nil

	case <-c.done:
		// Controller stopped (possibly due to transport error) - fail fast
		aw.Cancel()

		if err := c.FatalError(); err != nil {
			c.log.Warn("Transport error during request", "id", aw.id, "error", err)

			return nil, fmt.Errorf("transport error: %w", err)
		}

		c.log.Debug("Controller stopped during request", "id", aw.id)

		return nil, errors.ErrControllerStopped

	case <-ctx.Done():
		aw.Cancel()
		c.log.Debug("Request cancelled", "id", aw.id)

		return nil, ctx.Err()
	}
}

// Write encodes msg and emits it as one line. Every outbound message
// funnels through here, including responses written by handlers, so the
// write rate limit applies uniformly.
func (c *Controller) Write(ctx context.Context, msg rpc.Message) error {
	line, err := rpc.Encode(msg)
	if err != nil {
		c.log.Error("Failed to encode outbound message", "error", err)

		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("write rate limit: %w", err)
		}
	}

	if err := c.transport.WriteLine(ctx, line); err != nil {
		return fmt.Errorf("write line: %w", err)
	}

	return nil
}

// WriteRequest emits a request with a caller-chosen id. Most callers want
// Request, which also allocates the id and registers the response entry.
func (c *Controller) WriteRequest(
	ctx context.Context,
	id rpc.ID,
	method string,
	params json.RawMessage,
) error {
	return c.Write(ctx, &rpc.Request{ID: id, Method: method, Params: params})
}

// WriteResponse answers a peer request. Exactly one of result and rpcErr
// should be set; both unset sends an empty success.
func (c *Controller) WriteResponse(
	ctx context.Context,
	id rpc.ID,
	result json.RawMessage,
	rpcErr *rpc.Error,
) error {
	return c.Write(ctx, &rpc.Response{ID: id, Result: result, Error: rpcErr})
}

// WriteNotification emits a one-way message. No response will ever arrive
// for it.
func (c *Controller) WriteNotification(
	ctx context.Context,
	method string,
	params json.RawMessage,
) error {
	return c.Write(ctx, &rpc.Notification{Method: method, Params: params})
}

// RegisterHandler registers a handler for inbound requests with the given
// method. A non-nil schema validates params before the handler runs;
// requests failing validation are answered with an invalid params error
// and never reach the handler.
//
// Only one handler can be registered per method. Registering a handler for
// the same method twice will override the previous handler.
func (c *Controller) RegisterHandler(method string, schema *jsonschema.Resolved, h rpc.Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Registering request handler", "method", method)
	c.handlers[method] = &registeredHandler{fn: h, params: schema}
}

// UnregisterHandler removes the handler for method, if any. Requests
// arriving afterwards flow to the event stream instead.
func (c *Controller) UnregisterHandler(method string) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Unregistering request handler", "method", method)
	delete(c.handlers, method)
}

// Subscribe attaches fn to notifications with the given method under the
// caller-supplied token. Callbacks for one method run in the order they
// subscribed.
func (c *Controller) Subscribe(method, token string, fn rpc.NotificationFunc) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	c.log.Debug("Adding notification subscription", "method", method, "token", token)
	c.subs[method] = append(c.subs[method], &subscription{token: token, fn: fn})
	c.subTokens[token] = method
}

// Unsubscribe removes the subscription identified by token. It reports
// whether the token was known.
func (c *Controller) Unsubscribe(token string) bool {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	method, exists := c.subTokens[token]
	if !exists {
		return false
	}

	delete(c.subTokens, token)

	subs := c.subs[method]
	for i, s := range subs {
		if s.token == token {
			c.subs[method] = append(subs[:i:i], subs[i+1:]...)

			break
		}
	}

	if len(c.subs[method]) == 0 {
		delete(c.subs, method)
	}

	c.log.Debug("Removed notification subscription", "method", method, "token", token)

	return true
}

// readLoop reads lines from the transport and routes decoded messages.
func (c *Controller) readLoop(ctx context.Context, lines <-chan []byte, errs <-chan error) {
	defer close(c.readExited)
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				// The error channel may still hold the read fault that
				// ended the stream; prefer reporting it over a clean EOF.
				select {
				case err := <-errs:
					if err != nil {
						c.SetFatalError(err)
					}
				default:
				}

				c.log.Debug("Line channel closed")

				return
			}

			c.handleLine(ctx, line)

		case err, ok := <-errs:
			if !ok {
				c.log.Debug("Error channel closed")

				return
			}

			if err != nil {
				c.log.Debug("Transport error in protocol", "error", err)
				c.SetFatalError(err)

				return
			}

		case <-c.done:
			c.log.Debug("Protocol controller stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")

			return
		}
	}
}

// handleLine decodes one line and routes the message.
func (c *Controller) handleLine(ctx context.Context, line []byte) {
	msg, err := rpc.Decode(line)
	if err != nil {
		// Undecodable lines are dropped without disturbing anything else;
		// the peer gets no feedback and pending requests are unaffected.
		c.log.Debug("Skipping undecodable line", "error", err)

		return
	}

	switch m := msg.(type) {
	case *rpc.Response:
		if !c.table.Resolve(m.ID, m) {
			c.log.Debug("Dropping response with no pending request", "id", m.ID)
		}

	case *rpc.Request:
		if c.dispatchRequest(ctx, m) {
			return
		}

		c.enqueue(m)

	case *rpc.Notification:
		if c.dispatchNotification(ctx, m) {
			return
		}

		c.enqueue(m)
	}
}

// dispatchRequest hands the request to its registered handler, if any, and
// reports whether the request was claimed.
func (c *Controller) dispatchRequest(ctx context.Context, req *rpc.Request) bool {
	c.handlersMu.RLock()
	reg, exists := c.handlers[req.Method]
	c.handlersMu.RUnlock()

	if !exists {
		return false
	}

	c.log.Debug("Dispatching request to handler", "id", req.ID, "method", req.Method)

	// Run handler in goroutine so the read loop keeps dispatching while it
	// works
	c.wg.Go(func() {
		c.runHandler(ctx, reg, req)
	})

	return true
}

// runHandler validates, invokes, and answers one inbound request.
func (c *Controller) runHandler(ctx context.Context, reg *registeredHandler, req *rpc.Request) {
	if reg.params != nil {
		if err := validateParams(reg.params, req.Params); err != nil {
			c.log.Debug("Request params failed validation",
				"id", req.ID,
				"method", req.Method,
				"error", err,
			)

			detail, _ := json.Marshal(err.Error())
			c.sendErrorResponse(ctx, req.ID, &rpc.Error{
				Code:    rpc.CodeInvalidParams,
				Message: "invalid params",
				Data:    detail,
			})

			return
		}
	}

	result, err := reg.fn(ctx, req.Params)
	if err != nil {
		if rpcErr, ok := stderrors.AsType[*rpc.Error](err); ok {
			c.sendErrorResponse(ctx, req.ID, rpcErr)

			return
		}

		c.log.Warn("Handler returned error",
			"id", req.ID,
			"method", req.Method,
			"error", err.Error(),
		)
		c.sendErrorResponse(ctx, req.ID, &rpc.Error{
			Code:    rpc.CodeInternalError,
			Message: err.Error(),
		})

		return
	}

	raw, err := marshalResult(result)
	if err != nil {
		c.log.Error("Failed to marshal handler result", "id", req.ID, "method", req.Method, "error", err)
		c.sendErrorResponse(ctx, req.ID, &rpc.Error{
			Code:    rpc.CodeInternalError,
			Message: "result not serializable",
		})

		return
	}

	if err := c.WriteResponse(ctx, req.ID, raw, nil); err != nil {
		c.log.Error("Failed to send handler response", "id", req.ID, "error", err)
	}
}

// sendErrorResponse answers a request with an error response.
func (c *Controller) sendErrorResponse(ctx context.Context, id rpc.ID, rpcErr *rpc.Error) {
	if err := c.WriteResponse(ctx, id, nil, rpcErr); err != nil {
		// Don't log error if context was cancelled (expected during shutdown)
		if ctx.Err() != nil {
			c.log.Debug("Could not send error response during shutdown", "error", err)

			return
		}

		c.log.Error("Failed to send error response", "id", id, "error", err)
	}
}

// dispatchNotification runs subscription callbacks for the method and
// reports whether any subscription claimed the notification.
func (c *Controller) dispatchNotification(ctx context.Context, n *rpc.Notification) bool {
	c.subsMu.RLock()
	subs := append([]*subscription(nil), c.subs[n.Method]...)
	c.subsMu.RUnlock()

	if len(subs) == 0 {
		return false
	}

	c.log.Debug("Dispatching notification", "method", n.Method, "subscribers", len(subs))

	// Callbacks run on the dispatch goroutine, so delivery order across
	// notifications of the same method matches wire order.
	for _, s := range subs {
		s.fn(ctx, n)
	}

	return true
}

// enqueue parks an unclaimed message on the FIFO queue for consumers.
func (c *Controller) enqueue(msg rpc.Message) {
	c.queueMu.Lock()
	c.queue = append(c.queue, msg)
	queued := len(c.queue)
	c.queueMu.Unlock()

	c.log.Debug("Queued message for consumers", "queued", queued)

	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// pumpLoop moves queued messages to the consumer channel in FIFO order.
// Only this goroutine sends on or closes c.messages.
func (c *Controller) pumpLoop() {
	defer close(c.messages)
	defer c.log.Debug("Protocol pump loop stopped")

	for {
		c.queueMu.Lock()

		var msg rpc.Message

		if len(c.queue) > 0 {
			msg = c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]

			if len(c.queue) == 0 {
				// Release the drained backing array instead of holding its
				// high-water mark forever
				c.queue = nil
			}
		}

		c.queueMu.Unlock()

		if msg == nil {
			select {
			case <-c.kick:
				continue

			case <-c.readExited:
				// No more producers; drain anything that raced in, then
				// finish
				c.queueMu.Lock()
				empty := len(c.queue) == 0
				c.queueMu.Unlock()

				if empty {
					return
				}

				continue

			case <-c.done:
				return
			}
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}

// validateParams checks raw params against a resolved schema. Absent
// params validate as an empty object, so schemas with required properties
// reject them.
func validateParams(schema *jsonschema.Resolved, params json.RawMessage) error {
	var instance any

	if len(params) > 0 {
		if err := json.Unmarshal(params, &instance); err != nil {
			return fmt.Errorf("params are not valid JSON: %w", err)
		}
	} else {
		instance = map[string]any{}
	}

	return schema.Validate(instance)
}

// marshalResult renders a handler's return value as a raw result. nil
// stays nil so the result field is omitted, and raw JSON passes through
// untouched.
func marshalResult(result any) (json.RawMessage, error) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}

		return raw, nil
	}
}
