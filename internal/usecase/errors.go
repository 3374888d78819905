package usecase

import "errors"

var (
	// ErrNoPredictions means zero providers survived the fan-out. Fatal for
	// the request; not retried locally.
	ErrNoPredictions = errors.New("no predictions available")

	// ErrInvalidInput means the asset or collection reference is malformed.
	// Rejected before any provider is invoked.
	ErrInvalidInput = errors.New("invalid asset or collection reference")

	// ErrUnsupportedModelKind means an explicitly requested model kind is not
	// supported. Rejected synchronously.
	ErrUnsupportedModelKind = errors.New("unsupported model kind")
)
