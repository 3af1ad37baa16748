package stac

import "errors"

// ErrSearchFailed marks a catalog search that did not complete: transport
// failure, non-2xx status, or an undecodable response.
var ErrSearchFailed = errors.New("stac search failed")
