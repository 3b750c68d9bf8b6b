package omegga

import (
	"github.com/wagiedev/omegga-sdk-go/internal/client"
	"github.com/wagiedev/omegga-sdk-go/internal/config"
	"github.com/wagiedev/omegga-sdk-go/internal/protocol"
	"github.com/wagiedev/omegga-sdk-go/internal/rpc"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures the behavior of the client.
type Options = config.Options

// ===== Wire Messages =====

// Message is the interface implemented by every inbound wire message.
// Concrete types are *Request, *Response and *Notification.
type Message = rpc.Message

// Request is an inbound or outbound call that expects a response.
type Request = rpc.Request

// Response answers a request, carrying either a result or an error.
type Response = rpc.Response

// Notification is a fire-and-forget message with no id.
type Notification = rpc.Notification

// ID identifies a request. The wire allows integers and strings.
type ID = rpc.ID

// IntID builds an integer-valued request ID.
var IntID = rpc.IntID

// StringID builds a string-valued request ID.
var StringID = rpc.StringID

// ===== RPC Errors =====

// Error is the error object carried in a response.
type Error = rpc.Error

// Well-known error codes from the JSON-RPC 2.0 specification. The host
// is free to use any code; these cover the ones the client produces
// itself when answering requests.
const (
	CodeParseError     = rpc.CodeParseError
	CodeInvalidRequest = rpc.CodeInvalidRequest
	CodeMethodNotFound = rpc.CodeMethodNotFound
	CodeInvalidParams  = rpc.CodeInvalidParams
	CodeInternalError  = rpc.CodeInternalError
)

// ===== Callbacks =====

// Handler answers an inbound request. The returned value is marshaled
// into the response result; returning a *Error sends that error to the
// host verbatim.
type Handler = rpc.Handler

// NotificationFunc consumes a subscribed notification.
type NotificationFunc = rpc.NotificationFunc

// ===== Awaiters =====

// Awaiter is the pending side of an in-flight request. Wait blocks
// until the host answers or the supplied context is done.
type Awaiter = protocol.Awaiter

// ===== Game Types =====

// Player describes a connected player as reported by getPlayers.
type Player = client.Player

// StatusPlayer is the per-player entry inside a server status report.
type StatusPlayer = client.StatusPlayer

// ServerStatus is the result of getServerStatus.
type ServerStatus = client.ServerStatus
