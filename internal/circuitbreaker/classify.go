package circuitbreaker

import (
	"context"
	"errors"
	"os"
)

// statusError is implemented by errors that carry an upstream HTTP status.
type statusError interface {
	HTTPStatus() int
}

// ClassifyError returns the weight of err for breaker accounting.
//
//   - nil, caller cancellation, 4xx -> 0 (not the upstream's fault)
//   - timeout -> 1.5
//   - 5xx, network errors -> 1.0
func ClassifyError(err error) float64 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return 1.5
	case errors.Is(err, context.Canceled):
		return 0
	}

	var se statusError
	if errors.As(err, &se) {
		code := se.HTTPStatus()
		if code >= 500 {
			return 1.0
		}
		return 0
	}
	return 1.0
}
