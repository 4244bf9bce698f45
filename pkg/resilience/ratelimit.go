package resilience

import "errors"

// RateLimitError is returned by vendor clients on HTTP 429.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message == "" {
		return "rate limit"
	}
	return e.Message
}

func IsRateLimit(err error) bool {
	return errors.As(err, new(RateLimitError))
}
