// Package rpc defines the line-delimited JSON-RPC message model spoken with
// the Omegga host.
//
// The wire format is deliberately minimal: requests carry an id, a method,
// and optional params; responses echo the id with either a result or an
// error; notifications carry only a method and optional params. There is no
// version field, and presence of the id field alone separates requests from
// notifications.
package rpc
