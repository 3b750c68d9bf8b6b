package protocol

import (
	"context"
	"encoding/json"

	"github.com/wagiedev/omegga-sdk-go/internal/errors"
	"github.com/wagiedev/omegga-sdk-go/internal/rpc"
)

// Awaiter is the receiving half of one in-flight request. It is created by
// Controller.Request after the request has been registered and written, and
// resolves exactly once.
//
// There is no built-in timeout; bound the wait with a context deadline.
type Awaiter struct {
	id    rpc.ID
	ch    <-chan *rpc.Response
	table *Table
}

// ID returns the wire id of the request this awaiter belongs to.
func (a *Awaiter) ID() rpc.ID {
	return a.id
}

// Wait blocks until the response arrives or ctx is done, and must be called
// at most once.
//
// A response carrying an error resolves to that *rpc.Error even if a result
// is also present. A response without one resolves to its raw result, which
// may be nil or JSON null. If the request was abandoned before a reply
// arrived, Wait returns ErrNoResponse.
//
// When ctx ends first, the pending entry is cancelled so a late reply
// cannot leak it, and ctx's error is returned.
func (a *Awaiter) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case resp, ok := <-a.ch:
		if !ok {
			return nil, errors.ErrNoResponse
		}

		if resp.Error != nil {
			return nil, resp.Error
		}

		return resp.Result, nil

	case <-ctx.Done():
		a.table.Cancel(a.id)

		return nil, ctx.Err()
	}
}

// Cancel abandons the request. The pending entry is removed, so a response
// arriving later is dropped, and a concurrent Wait returns ErrNoResponse.
// Cancelling after the response was delivered has no effect.
func (a *Awaiter) Cancel() {
	a.table.Cancel(a.id)
}
