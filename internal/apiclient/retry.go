package apiclient

import (
	"context"
	"math"
	"net/http"
	"time"
)

// RetryPolicy drives ATTEMPT(n) -> {SUCCESS, RETRY(n+1), EXHAUSTED} for a
// single request. Nothing persists across requests.
//
// Invalid values are normalized:
//   - MaxRetries < 0 becomes 0 (single attempt)
//   - BaseDelay <= 0 becomes 200ms
//   - TimeoutFactor < 1 becomes 1 (no escalation)
//   - OfflinePenalty < 0 becomes 0
type RetryPolicy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	TimeoutFactor  float64
	OfflinePenalty int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     1,
		BaseDelay:      200 * time.Millisecond,
		TimeoutFactor:  1.5,
		OfflinePenalty: 5,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.TimeoutFactor < 1 {
		p.TimeoutFactor = 1
	}
	if p.OfflinePenalty < 0 {
		p.OfflinePenalty = 0
	}
	return p
}

// Backoff is the delay before retry n (n >= 1): BaseDelay × 2^(n−1).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(n-1)))
}

// OfflineWait is the extra pause before a retry while the device is still offline.
func (p RetryPolicy) OfflineWait() time.Duration {
	return p.BaseDelay * time.Duration(p.OfflinePenalty)
}

// NextTimeout escalates the attempt timeout for the following retry.
func (p RetryPolicy) NextTimeout(current time.Duration) time.Duration {
	return time.Duration(float64(current) * p.TimeoutFactor)
}

// Retryable reports whether a failure is transient: no response, 5xx, a
// timeout, or a generic network-failure message. 401 is never retryable.
func Retryable(f Failure) bool {
	switch v := f.(type) {
	case TransportFailure:
		return true
	case HTTPFailure:
		if v.StatusCode == http.StatusUnauthorized {
			return false
		}
		return v.StatusCode >= 500 || genericNetworkMessage.MatchString(v.Message)
	case ApplicationFailure:
		return v.StatusCode >= 500
	default:
		return false
	}
}

// ShouldRetry decides whether attempt number retries+1 may follow.
func (p RetryPolicy) ShouldRetry(f Failure, retries int) bool {
	return retries < p.MaxRetries && Retryable(f)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
