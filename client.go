package omegga

import (
	"context"
	"encoding/json"
)

// Client is the stateful interface an Omegga plugin uses to talk to its
// host over stdin and stdout.
//
// A client correlates outbound requests with their responses, answers
// inbound requests through registered handlers, fans subscribed
// notifications out to callbacks and queues everything else on Events().
//
// Lifecycle: Clients are single-use. After Close(), create a new client
// with NewClient().
//
// Example usage:
//
//	client := NewClient(
//	    WithLogger(slog.Default()),
//	    WithHandler("init", initHandler),
//	)
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Call the host and wait for the answer
//	result, err := client.Call(ctx, "getPlayers", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Drain unclaimed inbound traffic
//	for msg := range client.Events() {
//	    // Process message...
//	}
type Client interface {
	// Connect starts the transport and the read loop.
	// Must be called before any other methods.
	// Returns ConnectionError if the transport cannot start.
	Connect(ctx context.Context) error

	// Events returns the stream of inbound messages no handler or
	// subscription claimed. The channel closes when the host stream
	// ends or the client is closed. Messages arrive in wire order.
	Events() <-chan Message

	// Receive returns the next unclaimed inbound message.
	// Returns io.EOF after a clean end of stream, or the transport
	// fault that ended the connection.
	Receive(ctx context.Context) (Message, error)

	// Request sends a request to the host and returns an awaiter for
	// the response. The request id is generated automatically; the
	// entry is registered before the line is written so an instant
	// answer cannot be dropped.
	Request(ctx context.Context, method string, params any) (*Awaiter, error)

	// Call is Request followed by Awaiter.Wait. It blocks until the
	// host answers or ctx is done. A host-reported failure surfaces
	// as *Error.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Notify sends a fire-and-forget notification to the host.
	Notify(ctx context.Context, method string, params any) error

	// Respond answers an inbound request by id. Exactly one of result
	// and rpcErr should be set; pass rpcErr to report a failure.
	// Use this for requests consumed from Events().
	Respond(ctx context.Context, id ID, result any, rpcErr *Error) error

	// Handle registers h to answer inbound requests for method.
	// Registering an already-handled method replaces the handler.
	// Handled requests never appear on Events().
	Handle(method string, h Handler) error

	// HandleWith registers h with a params schema. Requests whose
	// params fail validation are answered with CodeInvalidParams
	// without invoking h.
	HandleWith(method string, spec HandlerSpec, h Handler) error

	// Unhandle removes the handler for method. Subsequent requests
	// for it flow to Events().
	Unhandle(method string) error

	// On subscribes fn to notifications for method and returns a
	// cancellation token. Multiple subscriptions per method run in
	// registration order. Subscribed notifications never appear on
	// Events().
	On(method string, fn NotificationFunc) (string, error)

	// Off cancels the subscription identified by token. It reports
	// whether the token was live.
	Off(token string) bool

	// Log writes a line to the host console.
	Log(ctx context.Context, line string) error

	// LogWarn writes a warning line to the host console.
	LogWarn(ctx context.Context, line string) error

	// LogError writes an error line to the host console.
	LogError(ctx context.Context, line string) error

	// LogTrace writes a trace line to the host console.
	LogTrace(ctx context.Context, line string) error

	// Broadcast sends a chat line to every connected player.
	Broadcast(ctx context.Context, line string) error

	// Whisper sends a chat line to a single player.
	Whisper(ctx context.Context, target, line string) error

	// GetPlayers returns the players currently connected to the
	// server.
	GetPlayers(ctx context.Context) ([]Player, error)

	// GetServerStatus returns the server status report.
	GetServerStatus(ctx context.Context) (*ServerStatus, error)

	// StoreGet reads a value from the plugin's persistent store.
	// Absent keys yield a JSON null result.
	StoreGet(ctx context.Context, key string) (json.RawMessage, error)

	// StoreSet writes a value to the plugin's persistent store.
	StoreSet(ctx context.Context, key string, value any) error

	// StoreDelete removes a key from the plugin's persistent store.
	StoreDelete(ctx context.Context, key string) error

	// StoreWipe removes every key from the plugin's persistent store.
	StoreWipe(ctx context.Context) error

	// StoreKeys lists the keys in the plugin's persistent store.
	StoreKeys(ctx context.Context) ([]string, error)

	// Done returns a channel that closes when the connection ends for
	// any reason: clean EOF, transport fault or Close.
	Done() <-chan struct{}

	// Err returns the transport fault that ended the connection, or
	// nil after a clean end of stream.
	Err() error

	// Close cancels pending requests, stops the transport and cleans
	// up resources. After Close(), the client cannot be reused.
	// Safe to call multiple times.
	Close() error
}

// NewClient creates a new client. Options configure logging, the
// transport and the handlers and subscriptions that must be live
// before the first inbound line is read:
//
//	client := NewClient(
//	    WithLogger(slog.Default()),
//	    WithHandler("init", initHandler),
//	    WithOnNotification("chat", onChat),
//	)
func NewClient(opts ...Option) Client {
	return newClientImpl(opts...)
}
