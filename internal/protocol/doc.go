// Package protocol implements bidirectional RPC correlation with the Omegga host.
//
// The protocol package provides a Controller that manages request/response
// correlation over a line-delimited JSON transport. Outgoing requests get
// ids from an atomic sequence starting at -1 and an awaiter that resolves
// when the matching response arrives. Inbound traffic is decoded
// and routed: responses resolve pending requests, requests run registered
// handlers, notifications run subscriptions, and anything unclaimed is
// queued in wire order for the consumer.
//
// The Controller handles:
//   - Sending requests with unique wire ids
//   - Receiving and correlating responses, at most once per request
//   - Handler registration with optional params schema validation
//   - Notification subscriptions with ordered delivery
//
// Example usage:
//
//	transport := stdio.New(log)
//	transport.Start(ctx)
//
//	controller := protocol.NewController(log, transport, nil, 0)
//	controller.Start(ctx)
//
//	// Send a request and wait for its response
//	result, err := controller.Call(ctx, "getPlayers", nil)
package protocol
