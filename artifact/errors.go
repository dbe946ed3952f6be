package artifact

import "errors"

// ErrNotFound is returned when a session or artifact does not exist.
var ErrNotFound = errors.New("artifact not found")
