package sink

import "context"

// ErrorClass separates failures the caller could meaningfully retry from
// those it could not.
type ErrorClass int

const (
	// ErrClassNone means the send succeeded.
	ErrClassNone ErrorClass = iota
	// ErrClassPermanent covers bad-request-family failures: retrying the
	// same payload is futile.
	ErrClassPermanent
	// ErrClassTransient covers infrastructure failures: timeouts, rate
	// limits, connectivity.
	ErrClassTransient
)

func (c ErrorClass) String() string {
	switch c {
	case ErrClassNone:
		return "none"
	case ErrClassPermanent:
		return "permanent"
	default:
		return "transient"
	}
}

// Sink transmits a formatted message to a destination address. Implementations
// classify their own errors via Classify.
type Sink interface {
	Send(ctx context.Context, chatID string, message string) error
	Classify(err error) ErrorClass
}
