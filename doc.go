// Package omegga provides a Go SDK for writing Omegga plugins that talk
// to their host over stdin and stdout.
//
// The host and the plugin exchange newline-delimited JSON-RPC style
// messages on a single full-duplex stream. Either side may call the
// other: the plugin issues requests and notifications to the host, and
// the host drives the plugin's lifecycle with init and stop requests
// and streams game events at it as notifications. The SDK correlates
// responses with their requests, routes inbound requests to registered
// handlers, fans notifications out to subscribers and queues everything
// unclaimed on an event stream.
//
// # Basic Usage
//
// Create a client, wire the lifecycle handlers before connecting, then
// drain the event stream:
//
//	ctx := context.Background()
//
//	client := omegga.NewClient(
//	    omegga.WithHandler("init", func(ctx context.Context, params json.RawMessage) (any, error) {
//	        return map[string]any{"registeredCommands": []string{"!ping"}}, nil
//	    }),
//	    omegga.WithHandler("stop", func(ctx context.Context, params json.RawMessage) (any, error) {
//	        return nil, nil
//	    }),
//	)
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for msg := range omegga.Stream(ctx, client) {
//	    // process message...
//	}
//
// # Calling the Host
//
// Call blocks until the host answers; Request returns an awaiter the
// caller resolves itself. Typed wrappers cover the common host
// operations:
//
//	players, err := client.GetPlayers(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.Broadcast(ctx, "hello everyone"); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.StoreSet(ctx, "highscore", 40); err != nil {
//	    log.Fatal(err)
//	}
//
// # Handlers and Subscriptions
//
// Handlers answer inbound requests; subscriptions consume matching
// notifications. Both can be installed through options before the
// first line is read, or at runtime on a connected client:
//
//	token, err := client.On("chat", func(ctx context.Context, n *omegga.Notification) {
//	    // react to chat...
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Off(token)
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	client := omegga.NewClient(omegga.WithLogger(logger))
//
// The plugin's own stdout is the wire, so diagnostic logging belongs on
// stderr or the host console via client.Log.
//
// # Error Handling
//
// Host-reported failures surface as *Error; transport faults end the
// connection and are reported by Err:
//
//	result, err := client.Call(ctx, "getPlayers", nil)
//	if err != nil {
//	    if rpcErr, ok := errors.AsType[*omegga.Error](err); ok {
//	        log.Fatalf("host rejected the call: code=%d %s", rpcErr.Code, rpcErr.Message)
//	    }
//	    log.Fatal(err)
//	}
package omegga
