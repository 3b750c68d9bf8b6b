package omegga

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTransport implements Transport for testing. Inbound lines are
// scripted with sendLine; outbound lines are recorded.
type mockTransport struct {
	mu      sync.Mutex
	started bool
	closed  bool
	writes  [][]byte
	lines   chan []byte
	errs    chan error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		lines: make(chan []byte, 100),
		errs:  make(chan error, 10),
	}
}

// Compile-time check that *mockTransport implements the public Transport.
var _ Transport = (*mockTransport)(nil)

func (m *mockTransport) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true

	return nil
}

func (m *mockTransport) ReadLines(_ context.Context) (<-chan []byte, <-chan error) {
	return m.lines, m.errs
}

func (m *mockTransport) WriteLine(_ context.Context, line []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := make([]byte, len(line))
	copy(record, line)
	m.writes = append(m.writes, record)

	return nil
}

func (m *mockTransport) EndOutput() error {
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.lines)
		close(m.errs)
	}

	return nil
}

func (m *mockTransport) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.started && !m.closed
}

func (m *mockTransport) getWrites() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([][]byte, len(m.writes))
	copy(result, m.writes)

	return result
}

func (m *mockTransport) sendLine(line string) {
	m.lines <- []byte(line)
}

func (m *mockTransport) failStream(err error) {
	m.errs <- err
}

func waitForWrites(t *testing.T, m *mockTransport, n int) [][]byte {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		if writes := m.getWrites(); len(writes) >= n {
			return writes
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatalf("Timed out waiting for %d writes, have %d", n, len(m.getWrites()))

	return nil
}

func waitForCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatalf("Timed out waiting for %s", what)
}

func receiveEvent(t *testing.T, c Client) Message {
	t.Helper()

	select {
	case msg, ok := <-c.Events():
		require.True(t, ok, "events channel closed unexpectedly")

		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")

		return nil
	}
}

func connectedClient(t *testing.T, opts ...Option) (Client, *mockTransport) {
	t.Helper()

	transport := newMockTransport()
	client := NewClient(append([]Option{WithTransport(transport)}, opts...)...)

	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close() })

	return client, transport
}

// =============================================================================
// Lifecycle
// =============================================================================

// TestNewClient_Creation tests client creation.
func TestNewClient_Creation(t *testing.T) {
	client := NewClient()
	require.NotNil(t, client)

	err := client.Close()
	require.NoError(t, err)
}

// TestClient_ConnectTwice tests that a second Connect is rejected.
func TestClient_ConnectTwice(t *testing.T) {
	client, _ := connectedClient(t)

	err := client.Connect(context.Background())
	require.ErrorIs(t, err, ErrClientAlreadyConnected)
}

// TestClient_ConnectAfterClose tests that closed clients cannot reconnect.
func TestClient_ConnectAfterClose(t *testing.T) {
	client, _ := connectedClient(t)
	require.NoError(t, client.Close())

	err := client.Connect(context.Background())
	require.ErrorIs(t, err, ErrClientClosed)
}

// TestClient_NotConnectedOperations tests that operations before Connect
// fail with ErrClientNotConnected.
func TestClient_NotConnectedOperations(t *testing.T) {
	client := NewClient()
	defer client.Close()

	ctx := context.Background()

	_, err := client.Call(ctx, "getPlayers", nil)
	require.ErrorIs(t, err, ErrClientNotConnected)

	_, err = client.Request(ctx, "getPlayers", nil)
	require.ErrorIs(t, err, ErrClientNotConnected)

	require.ErrorIs(t, client.Notify(ctx, "log", "hi"), ErrClientNotConnected)
	require.ErrorIs(t, client.Respond(ctx, IntID(1), "ok", nil), ErrClientNotConnected)
	require.ErrorIs(t, client.Broadcast(ctx, "hi"), ErrClientNotConnected)
	require.ErrorIs(t, client.Handle("init", func(context.Context, json.RawMessage) (any, error) {
		return nil, nil
	}), ErrClientNotConnected)
	require.ErrorIs(t, client.Unhandle("init"), ErrClientNotConnected)

	_, err = client.On("chat", func(context.Context, *Notification) {})
	require.ErrorIs(t, err, ErrClientNotConnected)

	assert.False(t, client.Off("no-such-token"))
}

// =============================================================================
// Requests and Responses
// =============================================================================

// TestClient_CallRoundTrip tests a full request/response exchange through
// the public API.
func TestClient_CallRoundTrip(t *testing.T) {
	client, transport := connectedClient(t)

	type outcome struct {
		result json.RawMessage
		err    error
	}

	outcomeCh := make(chan outcome, 1)

	go func() {
		result, err := client.Call(context.Background(), "getServerStatus", nil)
		outcomeCh <- outcome{result: result, err: err}
	}()

	writes := waitForWrites(t, transport, 1)
	require.JSONEq(t, `{"id":-1,"method":"getServerStatus"}`, string(writes[0]))

	transport.sendLine(`{"id":-1,"result":{"serverName":"test","bricks":0,"components":0,"time":0}}`)

	select {
	case got := <-outcomeCh:
		require.NoError(t, got.err)
		require.JSONEq(t, `{"serverName":"test","bricks":0,"components":0,"time":0}`, string(got.result))
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for call to complete")
	}
}

// TestClient_CallHostError tests that a host error surfaces as *Error.
func TestClient_CallHostError(t *testing.T) {
	client, transport := connectedClient(t)

	errCh := make(chan error, 1)

	go func() {
		_, err := client.Call(context.Background(), "store.get", "missing")
		errCh <- err
	}()

	waitForWrites(t, transport, 1)
	transport.sendLine(`{"id":-1,"error":{"code":-32000,"message":"store offline"}}`)

	select {
	case err := <-errCh:
		var rpcErr *Error
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, -32000, rpcErr.Code)
		assert.Equal(t, "store offline", rpcErr.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for call to fail")
	}
}

// TestClient_RequestAwaiterResolvesLater tests the split Request/Wait flow.
func TestClient_RequestAwaiterResolvesLater(t *testing.T) {
	client, transport := connectedClient(t)

	aw, err := client.Request(context.Background(), "getPlayers", nil)
	require.NoError(t, err)

	writes := waitForWrites(t, transport, 1)
	require.JSONEq(t, `{"id":-1,"method":"getPlayers"}`, string(writes[0]))

	transport.sendLine(`{"id":-1,"result":[]}`)

	result, err := aw.Wait(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(result))
}

// TestClient_RequestWaitHonorsContext tests that an unanswered awaiter
// respects its wait context.
func TestClient_RequestWaitHonorsContext(t *testing.T) {
	client, transport := connectedClient(t)

	aw, err := client.Request(context.Background(), "getPlayers", nil)
	require.NoError(t, err)

	waitForWrites(t, transport, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = aw.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// =============================================================================
// Handlers
// =============================================================================

// TestClient_HandleAnswersRequest tests runtime handler registration.
func TestClient_HandleAnswersRequest(t *testing.T) {
	client, transport := connectedClient(t)

	require.NoError(t, client.Handle("greet", func(_ context.Context, params json.RawMessage) (any, error) {
		var name string
		if err := json.Unmarshal(params, &name); err != nil {
			return nil, err
		}

		return "hello " + name, nil
	}))

	transport.sendLine(`{"id":41,"method":"greet","params":"alice"}`)

	writes := waitForWrites(t, transport, 1)
	require.JSONEq(t, `{"id":41,"result":"hello alice"}`, string(writes[0]))
}

// TestClient_HandleWithValidatesParams tests schema validation through
// HandleWith.
func TestClient_HandleWithValidatesParams(t *testing.T) {
	client, transport := connectedClient(t)

	handlerRan := false
	spec := HandlerSpec{
		Params: ParamsSchema(map[string]string{
			"target": "string",
			"line":   "string",
		}, "target", "line"),
	}

	require.NoError(t, client.HandleWith("whisper", spec, func(_ context.Context, _ json.RawMessage) (any, error) {
		handlerRan = true

		return "sent", nil
	}))

	transport.sendLine(`{"id":1,"method":"whisper","params":{"target":"alice"}}`)

	writes := waitForWrites(t, transport, 1)

	var resp struct {
		ID    int64  `json:"id"`
		Error *Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(writes[0], &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	assert.False(t, handlerRan)

	transport.sendLine(`{"id":2,"method":"whisper","params":{"target":"alice","line":"hi"}}`)

	writes = waitForWrites(t, transport, 2)
	require.JSONEq(t, `{"id":2,"result":"sent"}`, string(writes[1]))
	assert.True(t, handlerRan)
}

// TestClient_HandleWithNilSchema tests that an empty HandlerSpec skips
// validation.
func TestClient_HandleWithNilSchema(t *testing.T) {
	client, transport := connectedClient(t)

	require.NoError(t, client.HandleWith("ping", HandlerSpec{}, func(_ context.Context, _ json.RawMessage) (any, error) {
		return "pong", nil
	}))

	transport.sendLine(`{"id":1,"method":"ping","params":{"anything":"goes"}}`)

	writes := waitForWrites(t, transport, 1)
	require.JSONEq(t, `{"id":1,"result":"pong"}`, string(writes[0]))
}

// TestClient_UnhandleRoutesToEvents tests that removing a handler sends
// later requests to the event stream.
func TestClient_UnhandleRoutesToEvents(t *testing.T) {
	client, transport := connectedClient(t)

	require.NoError(t, client.Handle("greet", func(_ context.Context, _ json.RawMessage) (any, error) {
		return "hi", nil
	}))
	require.NoError(t, client.Unhandle("greet"))

	transport.sendLine(`{"id":9,"method":"greet"}`)

	msg := receiveEvent(t, client)
	req, ok := msg.(*Request)
	require.True(t, ok, "expected *Request, got %T", msg)
	assert.Equal(t, IntID(9), req.ID)
	assert.Equal(t, "greet", req.Method)
	assert.Empty(t, transport.getWrites())
}

// TestClient_RespondAnswersEventRequest tests manual responses to
// requests consumed from the event stream.
func TestClient_RespondAnswersEventRequest(t *testing.T) {
	client, transport := connectedClient(t)

	transport.sendLine(`{"id":"cmd-1","method":"custom.thing"}`)

	msg := receiveEvent(t, client)
	req, ok := msg.(*Request)
	require.True(t, ok, "expected *Request, got %T", msg)

	require.NoError(t, client.Respond(context.Background(), req.ID, map[string]any{"done": true}, nil))

	writes := waitForWrites(t, transport, 1)
	require.JSONEq(t, `{"id":"cmd-1","result":{"done":true}}`, string(writes[0]))
}

// TestClient_RespondWithError tests sending an error response.
func TestClient_RespondWithError(t *testing.T) {
	client, transport := connectedClient(t)

	transport.sendLine(`{"id":3,"method":"custom.thing"}`)
	receiveEvent(t, client)

	rpcErr := &Error{Code: CodeMethodNotFound, Message: "unknown method"}
	require.NoError(t, client.Respond(context.Background(), IntID(3), nil, rpcErr))

	writes := waitForWrites(t, transport, 1)
	require.JSONEq(t, `{"id":3,"error":{"code":-32601,"message":"unknown method"}}`, string(writes[0]))
}

// =============================================================================
// Subscriptions
// =============================================================================

// TestClient_OnOffSubscription tests runtime subscription and cancellation.
func TestClient_OnOffSubscription(t *testing.T) {
	client, transport := connectedClient(t)

	var (
		mu    sync.Mutex
		lines []string
	)

	token, err := client.On("chat", func(_ context.Context, n *Notification) {
		var payload []string
		_ = json.Unmarshal(n.Params, &payload)

		mu.Lock()
		lines = append(lines, payload...)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	transport.sendLine(`{"method":"chat","params":["alice","hello"]}`)

	waitForCondition(t, "subscription delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(lines) == 2
	})

	assert.True(t, client.Off(token))
	assert.False(t, client.Off(token))

	// With the subscription gone the next chat flows to Events.
	transport.sendLine(`{"method":"chat","params":["bob","hi"]}`)

	msg := receiveEvent(t, client)
	notif, ok := msg.(*Notification)
	require.True(t, ok, "expected *Notification, got %T", msg)
	assert.Equal(t, "chat", notif.Method)
}

// TestClient_OptionsWireCallbacksBeforeConnect tests that handlers and
// subscriptions given as options see the very first inbound lines.
func TestClient_OptionsWireCallbacksBeforeConnect(t *testing.T) {
	transport := newMockTransport()

	// Queue traffic before Connect so it is waiting when reading starts.
	transport.sendLine(`{"id":0,"method":"init","params":{"config":{}}}`)
	transport.sendLine(`{"method":"chat","params":["alice","early"]}`)

	chatSeen := make(chan struct{})

	client := NewClient(
		WithTransport(transport),
		WithHandler("init", func(_ context.Context, _ json.RawMessage) (any, error) {
			return map[string]any{"registeredCommands": []string{"!ping"}}, nil
		}),
		WithOnNotification("chat", func(_ context.Context, _ *Notification) {
			close(chatSeen)
		}),
	)
	require.NoError(t, client.Connect(context.Background()))

	t.Cleanup(func() { _ = client.Close() })

	writes := waitForWrites(t, transport, 1)
	require.JSONEq(t, `{"id":0,"result":{"registeredCommands":["!ping"]}}`, string(writes[0]))

	select {
	case <-chatSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for subscribed chat notification")
	}

	// Neither claimed message may leak onto the event stream.
	select {
	case msg := <-client.Events():
		t.Fatalf("Unexpected event %T", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// =============================================================================
// Typed Operations
// =============================================================================

// TestClient_TypedOperationWireShapes spot-checks typed wrappers through
// the public API.
func TestClient_TypedOperationWireShapes(t *testing.T) {
	client, transport := connectedClient(t)

	ctx := context.Background()

	require.NoError(t, client.Log(ctx, "plugin ready"))
	require.NoError(t, client.Broadcast(ctx, "hello everyone"))
	require.NoError(t, client.Whisper(ctx, "alice", "psst"))

	writes := waitForWrites(t, transport, 3)
	require.JSONEq(t, `{"method":"log","params":"plugin ready"}`, string(writes[0]))
	require.JSONEq(t, `{"method":"broadcast","params":"hello everyone"}`, string(writes[1]))
	require.JSONEq(t, `{"method":"whisper","params":{"target":"alice","line":"psst"}}`, string(writes[2]))
}

// TestClient_GetPlayersTyped tests the typed getPlayers wrapper end to end.
func TestClient_GetPlayersTyped(t *testing.T) {
	client, transport := connectedClient(t)

	playersCh := make(chan []Player, 1)
	errCh := make(chan error, 1)

	go func() {
		players, err := client.GetPlayers(context.Background())
		playersCh <- players
		errCh <- err
	}()

	writes := waitForWrites(t, transport, 1)
	require.JSONEq(t, `{"id":-1,"method":"getPlayers"}`, string(writes[0]))

	transport.sendLine(`{"id":-1,"result":[{"name":"alice","id":"a-1"},{"name":"bob","id":"b-2"}]}`)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for getPlayers")
	}

	players := <-playersCh
	require.Len(t, players, 2)
	assert.Equal(t, "alice", players[0].Name)
	assert.Equal(t, "b-2", players[1].ID)
}

// TestClient_StoreSetTyped tests the typed store.set wrapper.
func TestClient_StoreSetTyped(t *testing.T) {
	client, transport := connectedClient(t)

	errCh := make(chan error, 1)

	go func() {
		errCh <- client.StoreSet(context.Background(), "highscore", map[string]int{"alice": 40})
	}()

	writes := waitForWrites(t, transport, 1)
	require.JSONEq(t, `{"id":-1,"method":"store.set","params":{"key":"highscore","value":{"alice":40}}}`, string(writes[0]))

	transport.sendLine(`{"id":-1,"result":null}`)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for store.set")
	}
}

// =============================================================================
// Shutdown
// =============================================================================

// TestClient_CleanEOF tests the end-of-stream path: Done closes, Err is
// nil and Receive reports io.EOF.
func TestClient_CleanEOF(t *testing.T) {
	client, transport := connectedClient(t)

	require.NoError(t, transport.Close())

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for Done")
	}

	require.NoError(t, client.Err())

	_, err := client.Receive(context.Background())
	require.ErrorIs(t, err, io.EOF)

	require.NoError(t, client.Close())
}

// TestClient_TransportFault tests that a stream error surfaces on Err and
// Close.
func TestClient_TransportFault(t *testing.T) {
	client, transport := connectedClient(t)

	streamErr := errors.New("conn reset")
	transport.failStream(streamErr)
	require.NoError(t, transport.Close())

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for Done")
	}

	waitForCondition(t, "fatal error", func() bool { return client.Err() != nil })
	require.ErrorContains(t, client.Err(), "conn reset")

	err := client.Close()
	require.ErrorContains(t, err, "conn reset")
}

// TestClient_WithWriteLimit tests that the write limit option throttles
// outbound lines.
func TestClient_WithWriteLimit(t *testing.T) {
	client, transport := connectedClient(t, WithWriteLimit(100, 1))

	ctx := context.Background()
	start := time.Now()

	require.NoError(t, client.Log(ctx, "one"))
	require.NoError(t, client.Log(ctx, "two"))
	require.NoError(t, client.Log(ctx, "three"))

	elapsed := time.Since(start)
	waitForWrites(t, transport, 3)

	// Burst covers the first line; the next two wait out the 10ms refill.
	assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}
