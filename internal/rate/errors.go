package rate

import "errors"

var (
	// ErrRateLimited is returned when the identifier or IP has exhausted
	// its failed-login budget for the current cooldown window.
	ErrRateLimited = errors.New("rate: limited")

	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("rate: redis unavailable")
)
