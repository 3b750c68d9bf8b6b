package omegga

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wagiedev/omegga-sdk-go/internal/client"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl    *client.Client
	options *Options
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl(opts ...Option) Client {
	return &clientWrapper{
		impl:    client.New(),
		options: applyOptions(opts),
	}
}

// Connect starts the transport and the read loop.
func (c *clientWrapper) Connect(ctx context.Context) error {
	return c.impl.Start(ctx, c.options)
}

// Events returns the stream of unclaimed inbound messages.
func (c *clientWrapper) Events() <-chan Message {
	return c.impl.Events()
}

// Receive returns the next unclaimed inbound message.
func (c *clientWrapper) Receive(ctx context.Context) (Message, error) {
	return c.impl.Receive(ctx)
}

// Request sends a request to the host and returns an awaiter for the response.
func (c *clientWrapper) Request(ctx context.Context, method string, params any) (*Awaiter, error) {
	return c.impl.Request(ctx, method, params)
}

// Call sends a request and waits for the host's answer.
func (c *clientWrapper) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.impl.Call(ctx, method, params)
}

// Notify sends a fire-and-forget notification to the host.
func (c *clientWrapper) Notify(ctx context.Context, method string, params any) error {
	return c.impl.Notify(ctx, method, params)
}

// Respond answers an inbound request by id.
func (c *clientWrapper) Respond(ctx context.Context, id ID, result any, rpcErr *Error) error {
	return c.impl.Respond(ctx, id, result, rpcErr)
}

// Handle registers h to answer inbound requests for method.
func (c *clientWrapper) Handle(method string, h Handler) error {
	return c.impl.RegisterHandler(method, nil, h)
}

// HandleWith registers h with a params schema.
func (c *clientWrapper) HandleWith(method string, spec HandlerSpec, h Handler) error {
	if spec.Params == nil {
		return c.impl.RegisterHandler(method, nil, h)
	}

	resolved, err := spec.Params.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve params schema: %w", err)
	}

	return c.impl.RegisterHandler(method, resolved, h)
}

// Unhandle removes the handler for method.
func (c *clientWrapper) Unhandle(method string) error {
	return c.impl.UnregisterHandler(method)
}

// On subscribes fn to notifications for method.
func (c *clientWrapper) On(method string, fn NotificationFunc) (string, error) {
	return c.impl.On(method, fn)
}

// Off cancels the subscription identified by token.
func (c *clientWrapper) Off(token string) bool {
	return c.impl.Off(token)
}

// Log writes a line to the host console.
func (c *clientWrapper) Log(ctx context.Context, line string) error {
	return c.impl.Log(ctx, line)
}

// LogWarn writes a warning line to the host console.
func (c *clientWrapper) LogWarn(ctx context.Context, line string) error {
	return c.impl.LogWarn(ctx, line)
}

// LogError writes an error line to the host console.
func (c *clientWrapper) LogError(ctx context.Context, line string) error {
	return c.impl.LogError(ctx, line)
}

// LogTrace writes a trace line to the host console.
func (c *clientWrapper) LogTrace(ctx context.Context, line string) error {
	return c.impl.LogTrace(ctx, line)
}

// Broadcast sends a chat line to every connected player.
func (c *clientWrapper) Broadcast(ctx context.Context, line string) error {
	return c.impl.Broadcast(ctx, line)
}

// Whisper sends a chat line to a single player.
func (c *clientWrapper) Whisper(ctx context.Context, target, line string) error {
	return c.impl.Whisper(ctx, target, line)
}

// GetPlayers returns the players currently connected to the server.
func (c *clientWrapper) GetPlayers(ctx context.Context) ([]Player, error) {
	return c.impl.GetPlayers(ctx)
}

// GetServerStatus returns the server status report.
func (c *clientWrapper) GetServerStatus(ctx context.Context) (*ServerStatus, error) {
	return c.impl.GetServerStatus(ctx)
}

// StoreGet reads a value from the plugin's persistent store.
func (c *clientWrapper) StoreGet(ctx context.Context, key string) (json.RawMessage, error) {
	return c.impl.StoreGet(ctx, key)
}

// StoreSet writes a value to the plugin's persistent store.
func (c *clientWrapper) StoreSet(ctx context.Context, key string, value any) error {
	return c.impl.StoreSet(ctx, key, value)
}

// StoreDelete removes a key from the plugin's persistent store.
func (c *clientWrapper) StoreDelete(ctx context.Context, key string) error {
	return c.impl.StoreDelete(ctx, key)
}

// StoreWipe removes every key from the plugin's persistent store.
func (c *clientWrapper) StoreWipe(ctx context.Context) error {
	return c.impl.StoreWipe(ctx)
}

// StoreKeys lists the keys in the plugin's persistent store.
func (c *clientWrapper) StoreKeys(ctx context.Context) ([]string, error) {
	return c.impl.StoreKeys(ctx)
}

// Done returns a channel that closes when the connection ends.
func (c *clientWrapper) Done() <-chan struct{} {
	return c.impl.Done()
}

// Err returns the transport fault that ended the connection, if any.
func (c *clientWrapper) Err() error {
	return c.impl.Err()
}

// Close terminates the connection and cleans up resources.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
