package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryPolicy repeats transient completion failures with exponential
// backoff: base, 2*base, 4*base, ... capped at ceiling. A Retry-After sent by
// the server replaces the computed delay but is capped the same way.
type retryPolicy struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
	sleeper  func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 3, base: time.Second, ceiling: 10 * time.Second}
}

// do runs call until it succeeds, fails permanently or runs out of attempts.
// Running out wraps the last error with the attempt count.
func (p retryPolicy) do(ctx context.Context, op string, call func() (string, error)) (string, error) {
	attempts := max(p.attempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var content string
		if content, err = call(); err == nil {
			return content, nil
		}
		wait, transient := retryAfter(err)
		if !transient || ctx.Err() != nil {
			return "", err
		}
		if attempt == attempts {
			break
		}
		if wait <= 0 {
			wait = p.backoff(attempt)
		}
		if err := p.wait(ctx, min(wait, p.limit())); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, err)
}

// retryAfter reports whether err is worth another attempt, along with the
// delay the server asked for, if any.
func retryAfter(err error) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if errors.Is(err, errEmptyCompletion) {
		return 0, true
	}
	var status *HTTPStatusError
	if errors.As(err, &status) {
		switch {
		case status.QuotaExhausted():
			return 0, false
		case status.StatusCode == http.StatusRequestTimeout,
			status.StatusCode == http.StatusTooManyRequests,
			status.StatusCode >= http.StatusInternalServerError:
			return status.RetryAfter, true
		}
		return 0, false
	}
	var netErr net.Error
	return 0, errors.As(err, &netErr) && netErr.Timeout()
}

func (p retryPolicy) limit() time.Duration {
	if p.ceiling > 0 {
		return p.ceiling
	}
	return defaultRetryPolicy().ceiling
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	delay := p.base
	for i := 1; i < attempt && delay < p.limit(); i++ {
		delay *= 2
	}
	return min(delay, p.limit())
}

func (p retryPolicy) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if p.sleeper != nil {
		p.sleeper(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
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
		if d := time.Until(when); d > 0 {
			return d, true
		}
	}
	return 0, false
}
