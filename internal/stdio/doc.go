// Package stdio provides the line-oriented stdio transport for the Omegga SDK.
//
// This package implements the Transport interface over the process's own
// stdin and stdout, which is how an Omegga host talks to a spawned plugin.
// It handles line framing, write serialization, and stream lifecycle; it
// never decodes the lines it carries.
package stdio
