// Package subprocess provides a transport that spawns the peer as a child
// process.
//
// This package implements the Transport interface by launching a command
// and speaking newline-delimited records over its stdin/stdout. It handles
// process lifecycle management, stderr capture, and error reporting when
// the peer exits abnormally. Test harnesses and host-side tooling use it
// to run a plugin or a scripted host as a subprocess; plugins themselves
// run over the stdio transport instead.
package subprocess
