package reminder

import (
	"fmt"

	"github.com/pkg/errors"
)

// Failure kinds. Adapters wrap their errors with one of these so callers can
// classify a failure with errors.Is.
var (
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrTransportFailure = errors.New("transport failure")
	ErrConfiguration    = errors.New("configuration error")
)

// DataUnavailable marks err as a store or query failure.
func DataUnavailable(err error, msg string) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrDataUnavailable, err)
}

// TransportFailure marks err as an email or broadcast delivery failure.
func TransportFailure(err error, msg string) error {
	return fmt.Errorf("%s: %w: %w", msg, ErrTransportFailure, err)
}

// FailureKind returns a short label for err, suitable for metrics and log fields.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransportFailure):
		return "transport"
	default:
		return "internal"
	}
}
