package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleeper     func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{maxAttempts: 3, baseDelay: time.Second, maxDelay: 10 * time.Second}
}

func (p retryPolicy) attempts() int {
	if p.maxAttempts <= 0 {
		return 1
	}
	return p.maxAttempts
}

// delay reports whether err is worth another attempt and how long to wait.
// Retries cover 408, 429, 5xx, network timeouts and empty completions.
func (p retryPolicy) delay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if err == nil || attempt >= p.attempts() || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return p.backoff(attempt), true
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError && statusErr.StatusCode != http.StatusInsufficientStorage:
			if statusErr.RetryAfter > 0 {
				return p.cap(statusErr.RetryAfter), true
			}
			return p.backoff(attempt), true
		}
		return 0, false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from baseDelay per attempt: base, 2*base, 4*base, ...
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.baseDelay <= 0 {
		return 0
	}
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.maxDelay > 0 && delay >= p.maxDelay {
			break
		}
	}
	return p.cap(delay)
}

func (p retryPolicy) cap(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.maxDelay > 0 && delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}

func (p retryPolicy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
