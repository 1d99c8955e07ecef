package mqtt

import "errors"

// ErrNotConnected is returned when publishing before the session is up.
var ErrNotConnected = errors.New("mqtt session not connected")
