package rpc

import (
	"encoding/json"
	"fmt"
)

// Error codes from the JSON-RPC 2.0 specification. The SDK uses them when it
// answers malformed or unhandled host requests; hosts may use any code.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is an RPC-level failure carried inside a Response. It is the peer
// saying "I understood your request and it failed", as opposed to transport
// or decoding failures which never reach the wire.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
