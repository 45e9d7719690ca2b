package retrier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Fantasim/solfan/internal/config"
)

const (
	defaultInitialInterval = 1 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxAttempts     = 5
	defaultJitter          = 0.1
)

// Retrier runs a function until it succeeds, the attempt budget is spent,
// or the error is not worth retrying.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	linear          bool
	maxAttempts     int
	jitter          float64
	retryIf         func(error) bool
	onRetry         func(attempt int, err error, delay time.Duration)
}

// Option defines a function to configure the Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the delay before the first retry.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.initialInterval = d
	}
}

// WithMaxInterval caps the delay between attempts.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.maxInterval = d
	}
}

// WithMultiplier sets the exponential backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(r *Retrier) {
		r.multiplier = m
	}
}

// WithLinearBackoff makes the n-th retry wait n * initialInterval.
func WithLinearBackoff() Option {
	return func(r *Retrier) {
		r.linear = true
	}
}

// WithMaxAttempts sets the total number of attempts, first call included.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		r.maxAttempts = n
	}
}

// WithJitter sets the jitter factor (0.0 to 1.0).
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		r.jitter = j
	}
}

// WithRetryIf only retries errors for which fn returns true.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) {
		r.retryIf = fn
	}
}

// WithOnRetry registers a hook called before each retry sleep.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

// New creates a new Retrier with default values and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxAttempts:     defaultMaxAttempts,
		jitter:          defaultJitter,
	}

	for _, opt := range opts {
		opt(r)
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 1
	}

	return r
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// IsExhausted reports whether err came from a spent attempt budget.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// Do executes fn with retries. A non-retryable error is returned as is;
// running out of attempts returns an *ExhaustedError wrapping the last error.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.delay(attempt-1, err)
			if r.onRetry != nil {
				r.onRetry(attempt-1, err, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if r.retryIf != nil && !r.retryIf(err) {
			return err
		}
	}

	return &ExhaustedError{Attempts: r.maxAttempts, Err: err}
}

// delay computes the wait before retry number n (1-based). A server-provided
// Retry-After longer than the computed backoff wins.
func (r *Retrier) delay(n int, lastErr error) time.Duration {
	var interval time.Duration
	if r.linear {
		interval = r.initialInterval * time.Duration(n)
	} else {
		interval = r.initialInterval
		for i := 1; i < n && interval < r.maxInterval; i++ {
			interval = time.Duration(float64(interval) * r.multiplier)
		}
	}
	if interval > r.maxInterval {
		interval = r.maxInterval
	}

	jitter := (rand.Float64()*2 - 1) * r.jitter * float64(interval)
	d := time.Duration(float64(interval) + jitter)
	if d < 0 {
		d = 0
	}

	if ra := config.GetRetryAfter(lastErr); ra > d {
		d = ra
	}
	return d
}

// DoWithData executes the given function with retries and returns a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
