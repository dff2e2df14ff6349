package http

import "golang.org/x/time/rate"

// newRateLimiter allows perMinute inbound frames per minute with an equal
// burst. A non-positive limit disables limiting.
func newRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
}
