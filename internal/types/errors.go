package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is a machine-readable classification of a pipeline error.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindTransport     ErrorKind = "transport"
	KindValidation    ErrorKind = "validation"
	KindIO            ErrorKind = "io"
	KindGeneration    ErrorKind = "generation"
	KindRejected      ErrorKind = "rejected"
	KindUnknown       ErrorKind = "unknown"
)

// ConfigurationError means required configuration is missing or invalid.
// It is the only kind that aborts a run.
type ConfigurationError struct {
	Missing []string
	Message string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("configuration error: %s: missing %s", e.Message, strings.Join(e.Missing, ", "))
	}
	return "configuration error: " + e.Message
}

// TransportError is a network, HTTP status or body decoding failure of one call.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError carries the offending value and the shape it failed.
type ValidationError struct {
	Shape  string
	Value  any
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: value does not match %s: %s", e.Shape, strings.Join(e.Issues, "; "))
}

// IOError is a failed artifact or log write.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// GenerationError is a failure of the schema/type generator.
type GenerationError struct {
	Name    string
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error: %s (%s): %v", e.Name, e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// RejectedError is a well-formed error record returned by the remote API
// in place of a created record.
type RejectedError struct {
	Endpoint string
	Message  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected: %s: %s", e.Endpoint, e.Message)
}

// KindOf classifies err by the first taxonomy error in its chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var (
		cfgErr *ConfigurationError
		trErr  *TransportError
		valErr *ValidationError
		ioErr  *IOError
		genErr *GenerationError
		rejErr *RejectedError
	)
	switch {
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &trErr):
		return KindTransport
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &ioErr):
		return KindIO
	case errors.As(err, &genErr):
		return KindGeneration
	case errors.As(err, &rejErr):
		return KindRejected
	default:
		return KindUnknown
	}
}

// IsFatal reports whether err must terminate the run.
func IsFatal(err error) bool {
	return KindOf(err) == KindConfiguration
}
