package spotify

import "time"

// Backoff is an immutable retry-delay policy state for rate-limited calls.
// Each call to Next returns the delay to sleep and the advanced state, so a
// retry loop is a pure iteration over values.
type Backoff struct {
	attempts   int
	delay      time.Duration
	maxRetries int
}

// NewBackoff returns a backoff starting at initial and doubling on every
// attempt, allowing at most maxRetries retries.
func NewBackoff(initial time.Duration, maxRetries int) Backoff {
	return Backoff{delay: initial, maxRetries: maxRetries}
}

// DefaultBackoff returns the policy used for Spotify API calls.
func DefaultBackoff() Backoff {
	return NewBackoff(time.Second, 4)
}

// Next returns the next delay and the advanced state. ok is false when all
// retries are exhausted, in which case the caller must give up instead of
// retrying further.
func (b Backoff) Next() (delay time.Duration, next Backoff, ok bool) {
	if b.attempts >= b.maxRetries {
		return 0, b, false
	}
	next = Backoff{
		attempts:   b.attempts + 1,
		delay:      b.delay * 2,
		maxRetries: b.maxRetries,
	}
	return b.delay, next, true
}
