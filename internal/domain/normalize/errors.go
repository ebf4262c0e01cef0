package normalize

import "errors"

// ErrParseFailure marks a product name without a recognizable volume token.
var ErrParseFailure = errors.New("volume not found in product name")
