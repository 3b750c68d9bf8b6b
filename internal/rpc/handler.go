package rpc

import (
	"context"
	"encoding/json"
)

// Handler services one inbound request method, receiving the request's
// raw params. The returned value is marshaled into the response result;
// return nil for an empty result.
//
// Returning a *Error sends that error to the peer verbatim. Any other
// non-nil error is reported to the peer as an internal error
// (CodeInternalError) with the error text as its message.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationFunc receives one matching notification. Callbacks run on
// the dispatch goroutine in registration order, so they must not block;
// in particular, waiting for a response from inside one deadlocks the
// read loop. The context ends when the client stops.
type NotificationFunc func(ctx context.Context, n *Notification)
