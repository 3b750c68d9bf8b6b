package omegga

import (
	"context"
	"iter"
)

// Stream returns an iterator over the client's unclaimed inbound
// messages. The iterator ends when the event stream closes or ctx is
// done, so a plugin's main loop can be a single range statement:
//
//	for msg := range omegga.Stream(ctx, client) {
//	    // Process message...
//	}
//
// Check client.Err() after the loop to distinguish a clean end of
// stream from a transport fault.
func Stream(ctx context.Context, c Client) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for {
			select {
			case msg, ok := <-c.Events():
				if !ok {
					return
				}

				if !yield(msg) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
