package service

import "errors"

var (
	// ErrInvalidRequest marks a request the pipeline cannot start on.
	ErrInvalidRequest = errors.New("invalid extraction request")

	// ErrNoFields is returned when the request carries no fields.
	ErrNoFields = errors.New("no fields to extract")

	// ErrNoScenes is returned when the catalog search matches nothing.
	ErrNoScenes = errors.New("no scenes found for window")

	// ErrNoSnapshots is returned when selection fills no slot.
	ErrNoSnapshots = errors.New("no snapshots selected")
)
