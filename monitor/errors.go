package monitor

import "errors"

// ErrInvalidInput is returned for empty policy names, empty content and
// malformed configuration.
var ErrInvalidInput = errors.New("monitor: invalid input")
