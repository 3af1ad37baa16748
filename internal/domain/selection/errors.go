package selection

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrUnknownStrategy marks a strategy kind outside the closed variant set.
	ErrUnknownStrategy = errors.New("unknown snapshot strategy")

	// ErrInvalidStrategy marks a strategy missing its required parameters.
	ErrInvalidStrategy = errors.New("invalid snapshot strategy")
)
