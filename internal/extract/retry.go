package extract

import "time"

// RetryPolicy governs how the extractor recovers from oracle failures:
// how many attempts a chunk gets, how much the chunk shrinks after a
// truncated or malformed response, how transport backoff grows, and how
// long a single oracle call may run before it is cut off and retried.
// Injected rather than hardcoded so it can be exercised with a fake
// oracle.
type RetryPolicy struct {
	MaxAttempts    int
	ShrinkFactor   int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RequestTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		ShrinkFactor:   2,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		RequestTimeout: 60 * time.Second,
	}
}

// BackoffFor returns the exponential wait before the given retry
// (attempt is 1-based: the wait after the attempt-th failure).
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

func (p RetryPolicy) normalized() RetryPolicy {
	out := p
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.ShrinkFactor <= 1 {
		out.ShrinkFactor = 2
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = 30 * time.Second
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = 60 * time.Second
	}
	return out
}
