// Package errors defines error types for the Omegga SDK.
//
// This package provides structured error types that wrap different failure
// scenarios when talking to the host over stdio. All error types support
// error unwrapping and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
