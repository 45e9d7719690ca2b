package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Fantasim/solfan/internal/config"
)

// Task is one unit of per-wallet work. i is the wallet's position in the input.
type Task func(ctx context.Context, i int)

// Runner executes n tasks. Every task is invoked exactly once, even after ctx
// is cancelled, so that every wallet produces an outcome.
type Runner interface {
	Run(ctx context.Context, n int, task Task)
}

// Collect runs fn for indices 0..n-1 on r and returns the results in input order.
func Collect[T any](ctx context.Context, r Runner, n int, fn func(ctx context.Context, i int) T) []T {
	results := make([]T, n)
	r.Run(ctx, n, func(ctx context.Context, i int) {
		results[i] = fn(ctx, i)
	})
	return results
}

// Pacer starts tasks at a fixed cadence without waiting for earlier ones,
// and joins them all at the end.
type Pacer struct {
	interval    time.Duration
	maxInFlight int
}

// PacerOption configures a Pacer.
type PacerOption func(*Pacer)

// WithMaxInFlight caps the number of concurrently running tasks. 0 means unbounded.
func WithMaxInFlight(n int) PacerOption {
	return func(p *Pacer) { p.maxInFlight = n }
}

// NewPacer creates a Pacer releasing one task per interval.
func NewPacer(interval time.Duration, opts ...PacerOption) *Pacer {
	p := &Pacer{interval: interval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts task(i) for each i, one per interval.
func (p *Pacer) Run(ctx context.Context, n int, task Task) {
	limit := rate.Inf
	if p.interval > 0 {
		limit = rate.Every(p.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var sem chan struct{}
	if p.maxInFlight > 0 {
		sem = make(chan struct{}, p.maxInFlight)
	}

	var wg sync.WaitGroup
	for i := range n {
		if ctx.Err() == nil {
			if err := limiter.Wait(ctx); err != nil {
				slog.Debug("pacer wait interrupted, releasing remaining tasks", "started", i, "total", n, "error", err)
			}
		}
		if sem != nil {
			sem <- struct{}{}
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			task(ctx, i)
		}(i)
	}
	wg.Wait()
}

// BatchGate runs tasks in groups of at most size, joining each group and
// sleeping cooldown between groups. No cooldown follows the last group.
type BatchGate struct {
	size     int
	cooldown time.Duration
}

// NewBatchGate creates a BatchGate. A size below 1 is treated as 1.
func NewBatchGate(size int, cooldown time.Duration) *BatchGate {
	if size < 1 {
		size = 1
	}
	return &BatchGate{size: size, cooldown: cooldown}
}

// Run executes the tasks group by group.
func (g *BatchGate) Run(ctx context.Context, n int, task Task) {
	for start := 0; start < n; start += g.size {
		end := min(start+g.size, n)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				task(ctx, i)
			}(i)
		}
		wg.Wait()

		if end < n && g.cooldown > 0 {
			slog.Debug("batch complete, cooling down", "done", end, "total", n, "cooldown", g.cooldown)
			timer := time.NewTimer(g.cooldown)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}
}

// ForSwapMode returns the runner configured for a swap mode.
func ForSwapMode(cfg *config.Config) (Runner, error) {
	switch cfg.SwapMode {
	case config.SwapModePaced:
		return NewPacer(cfg.SwapInterval), nil
	case config.SwapModeBatched:
		return NewBatchGate(cfg.SwapBatchSize, cfg.SwapBatchCooldown), nil
	default:
		return nil, fmt.Errorf("%w: unknown swap mode %q", config.ErrInvalidConfig, cfg.SwapMode)
	}
}
