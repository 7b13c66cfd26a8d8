package rate

import "errors"

// ErrUnavailable wraps Redis transport failures so callers can tell an
// unreachable backend apart from an exhausted window and fail open.
var ErrUnavailable = errors.New("rate limiter unavailable")
