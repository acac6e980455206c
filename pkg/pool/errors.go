package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProvider indicates the status_api kind is not known.
	ErrUnsupportedProvider = errors.New("unsupported status provider")

	// ErrProviderRequest indicates the provider could not be queried or its
	// response could not be decoded.
	ErrProviderRequest = errors.New("provider request failed")

	// ErrMalformedWorkerRecord indicates a returned worker entry has no name.
	ErrMalformedWorkerRecord = errors.New("worker record is missing required field name")

	// ErrWorkerNotFound indicates no returned entry matches the queried worker.
	ErrWorkerNotFound = errors.New("worker not found in provider result")

	// ErrAmbiguousWorker indicates more than one returned entry carries the
	// queried worker name.
	ErrAmbiguousWorker = errors.New("worker name matches more than one provider entry")
)

// RequestError describes a failed call to a pool API.
type RequestError struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s API error (HTTP %d) at %s: %s", e.Kind, e.StatusCode, e.Endpoint, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s API error (HTTP %d) at %s", e.Kind, e.StatusCode, e.Endpoint)
	case e.Err != nil:
		return fmt.Sprintf("%s request to %s: %v", e.Kind, e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("%s request to %s: %s", e.Kind, e.Endpoint, e.Message)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is makes every RequestError match ErrProviderRequest.
func (e *RequestError) Is(target error) bool {
	return target == ErrProviderRequest
}

// IsWorkerError reports whether err means the provider answered but the
// worker could not be picked out of the answer.
func IsWorkerError(err error) bool {
	return errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrMalformedWorkerRecord) ||
		errors.Is(err, ErrAmbiguousWorker)
}
