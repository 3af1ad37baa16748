package local

import "errors"

// ErrMalformedScene marks a scene file or href that cannot be parsed.
var ErrMalformedScene = errors.New("malformed scene file")
