package protocol

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wagiedev/omegga-sdk-go/internal/errors"
	"github.com/wagiedev/omegga-sdk-go/internal/rpc"

	"github.com/stretchr/testify/require"
)

func newTestAwaiter(t *testing.T, table *Table, id rpc.ID) *Awaiter {
	t.Helper()

	ch, err := table.Register(id)
	require.NoError(t, err)

	return &Awaiter{id: id, ch: ch, table: table}
}

func TestAwaiterWaitResult(t *testing.T) {
	table := NewTable()
	aw := newTestAwaiter(t, table, rpc.IntID(-1))

	table.Resolve(rpc.IntID(-1), &rpc.Response{
		ID:     rpc.IntID(-1),
		Result: json.RawMessage(`"pong"`),
	})

	result, err := aw.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, `"pong"`, string(result))
}

func TestAwaiterWaitNilResult(t *testing.T) {
	table := NewTable()
	aw := newTestAwaiter(t, table, rpc.IntID(0))

	// A success response may carry no result at all.
	table.Resolve(rpc.IntID(0), &rpc.Response{ID: rpc.IntID(0)})

	result, err := aw.Wait(context.Background())
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestAwaiterWaitRPCError(t *testing.T) {
	table := NewTable()
	aw := newTestAwaiter(t, table, rpc.IntID(1))

	table.Resolve(rpc.IntID(1), &rpc.Response{
		ID:    rpc.IntID(1),
		Error: &rpc.Error{Code: 1, Message: "bad"},
	})

	result, err := aw.Wait(context.Background())
	require.Nil(t, result)

	var rpcErr *rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, 1, rpcErr.Code)
	require.Equal(t, "bad", rpcErr.Message)
}

func TestAwaiterErrorWinsOverResult(t *testing.T) {
	table := NewTable()
	aw := newTestAwaiter(t, table, rpc.IntID(2))

	// A malformed peer may set both fields; the error is authoritative.
	table.Resolve(rpc.IntID(2), &rpc.Response{
		ID:     rpc.IntID(2),
		Result: json.RawMessage(`"ok"`),
		Error:  &rpc.Error{Code: 9, Message: "conflict"},
	})

	result, err := aw.Wait(context.Background())
	require.Nil(t, result)

	var rpcErr *rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, 9, rpcErr.Code)
}

func TestAwaiterWaitAfterCancel(t *testing.T) {
	table := NewTable()
	aw := newTestAwaiter(t, table, rpc.IntID(3))

	aw.Cancel()

	result, err := aw.Wait(context.Background())
	require.Nil(t, result)
	require.ErrorIs(t, err, errors.ErrNoResponse)
	require.Equal(t, 0, table.Len())
}

func TestAwaiterContextCancelRemovesEntry(t *testing.T) {
	table := NewTable()
	aw := newTestAwaiter(t, table, rpc.IntID(4))

	ctx, cancel := context.WithCancel(context.Background())

	waitDone := make(chan error, 1)

	go func() {
		_, err := aw.Wait(ctx)
		waitDone <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-waitDone:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}

	// The abandoned entry is gone, so a late response is dropped.
	require.Equal(t, 0, table.Len())
	require.False(t, table.Resolve(rpc.IntID(4), &rpc.Response{ID: rpc.IntID(4)}))
}

func TestAwaiterID(t *testing.T) {
	table := NewTable()
	aw := newTestAwaiter(t, table, rpc.StringID("req-1"))

	require.Equal(t, rpc.StringID("req-1"), aw.ID())
}
