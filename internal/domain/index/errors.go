package index

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrUnknownIndex marks a request for an index that was never registered.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrInvalidDefinition marks a malformed index registration.
	ErrInvalidDefinition = errors.New("invalid index definition")
)
