// Package client implements the stateful RPC client an Omegga plugin runs on.
//
// The client package owns the transport and the protocol controller and
// provides the full plugin-side surface on top of them:
//   - Raw primitives: Request, Call, Notify, Respond
//   - Handler and subscription registration, wired before the first read
//   - Typed operations for console output, chat, server queries, and the
//     plugin's persistent store
//
// The Client uses the protocol package for response correlation and dispatch
// and manages its own goroutine for message routing.
package client
