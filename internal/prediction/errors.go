package prediction

import "errors"

// ErrSuperseded is reported to the waiter of a request that a newer submission replaced.
// Its result was discarded and never became visible.
var ErrSuperseded = errors.New("prediction superseded by a newer request")

var ErrClosed = errors.New("prediction pipeline closed")

// ValidationError is a local, pre-flight failure. No request was sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RemoteError covers network, HTTP and payload failures of the remote service.
type RemoteError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
