package rpc

import (
	"encoding/json"
	"strconv"

	"github.com/wagiedev/omegga-sdk-go/internal/errors"
)

// ID identifies a request on the wire. Host-originated ids may be integers
// or strings; locally generated ids are always integers.
//
// The zero value is the integer id 0. IDs are comparable and can be used as
// map keys, which is how pending requests are correlated with their
// responses.
type ID struct {
	num   int64
	str   string
	isStr bool
}

// IntID returns the integer id n.
func IntID(n int64) ID {
	return ID{num: n}
}

// StringID returns the string id s.
func StringID(s string) ID {
	return ID{str: s, isStr: true}
}

// IsString reports whether the id is a string.
func (id ID) IsString() bool {
	return id.isStr
}

// Int returns the integer value. It is only meaningful when IsString is
// false.
func (id ID) Int() int64 {
	return id.num
}

// Text returns the string value. It is only meaningful when IsString is
// true.
func (id ID) Text() string {
	return id.str
}

// String renders the id for logs and error messages.
func (id ID) String() string {
	if id.isStr {
		return id.str
	}

	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON encodes the id as a JSON number or JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}

	return json.Marshal(id.num)
}

// UnmarshalJSON decodes a JSON number or JSON string. Anything else,
// including null, is rejected with an InvalidRequestIDError.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = StringID(s)

		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = IntID(n)

		return nil
	}

	return &errors.InvalidRequestIDError{Raw: string(data)}
}
