package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/wagiedev/omegga-sdk-go/internal/errors"
)

// Message is one wire message: a *Request, *Response, or *Notification.
// The set is closed; dispatch code can type-switch exhaustively.
type Message interface {
	wireMessage()
}

// Compile-time verification that all message types implement Message.
var (
	_ Message = (*Request)(nil)
	_ Message = (*Response)(nil)
	_ Message = (*Notification)(nil)
)

// Request asks the peer to perform a method and expects exactly one
// Response carrying the same id.
type Request struct {
	ID     ID              `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (*Request) wireMessage() {}

// Response answers the Request with the same id. Result and Error are
// mutually exclusive by convention; the decoder does not enforce it, and
// consumers treat a present Error as authoritative.
type Response struct {
	ID     ID              `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

func (*Response) wireMessage() {}

// Notification is a one-way message. No reply is expected and none may be
// sent, since without an id there is nothing to correlate a reply to.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (*Notification) wireMessage() {}

// Decode classifies one wire line by field presence and returns the
// concrete message.
//
// A message with a method field is a Request when an id is present and a
// Notification when it is absent. A message with an id and no method is a
// Response. Absence of the id field is the sole discriminator between
// requests and notifications; an id of JSON null counts as present and is
// rejected as invalid.
func Decode(line []byte) (Message, error) {
	var probe struct {
		ID     json.RawMessage `json:"id"`
		Method *string         `json:"method"`
		Params json.RawMessage `json:"params"`
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, &errors.MessageDecodeError{RawData: string(line), Err: err}
	}

	hasID := len(probe.ID) > 0

	switch {
	case probe.Method != nil && hasID:
		var id ID
		if err := json.Unmarshal(probe.ID, &id); err != nil {
			return nil, err
		}

		return &Request{ID: id, Method: *probe.Method, Params: probe.Params}, nil

	case probe.Method != nil:
		return &Notification{Method: *probe.Method, Params: probe.Params}, nil

	case hasID:
		var id ID
		if err := json.Unmarshal(probe.ID, &id); err != nil {
			return nil, err
		}

		return &Response{ID: id, Result: probe.Result, Error: probe.Error}, nil

	default:
		return nil, &errors.MessageDecodeError{
			RawData: string(line),
			Err:     fmt.Errorf("message has neither method nor id"),
		}
	}
}

// Encode renders a message as a single JSON line without the trailing
// newline. Optional fields that are unset are omitted entirely rather than
// emitted as null.
func Encode(msg Message) ([]byte, error) {
	line, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	return line, nil
}
