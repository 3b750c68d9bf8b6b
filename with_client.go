package omegga

import (
	"context"
	"fmt"
)

// WithClient manages client lifecycle with automatic cleanup.
//
// This helper creates a client, connects it with the provided options,
// executes the callback function, and ensures proper cleanup via
// Close() when done.
//
// The callback receives a connected Client that is ready for use.
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the
// callback's error.
//
// Example usage:
//
//	err := omegga.WithClient(ctx, func(c omegga.Client) error {
//	    if err := c.Log(ctx, "plugin ready"); err != nil {
//	        return err
//	    }
//	    for msg := range omegga.Stream(ctx, c) {
//	        // process message...
//	    }
//	    return c.Err()
//	},
//	    omegga.WithLogger(log),
//	    omegga.WithHandler("init", initHandler),
//	)
func WithClient(ctx context.Context, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client := NewClient(opts...)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect client: %w", err)
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Warn("failed to close client", "error", closeErr)
		}
	}()

	return fn(client)
}
