package rate

import "errors"

var (
	// ErrRateLimited is returned once a window's attempt budget is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
