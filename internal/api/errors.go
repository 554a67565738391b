package api

import (
	"fmt"
)

// NetworkError is a transport failure talking to the backend. It is also
// returned while the circuit breaker is open.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError is a successful response that lacks the expected fields.
type ProtocolError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unexpected response: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: unexpected response: %s", e.Op, e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// BackendError is a non-2xx response. Detail carries the server's
// "detail" field, or the raw body when there is none.
type BackendError struct {
	Op     string
	Status int
	Detail string
}

func (e *BackendError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Detail, e.Status)
}

// ResourceLoadError is an image or audio resource that could not be
// fetched or decoded.
type ResourceLoadError struct {
	Resource string
	Err      error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Resource, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }
