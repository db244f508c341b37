// Package traffic implements compliant load control for the waybill portal:
// a global concurrency limit, paced request starts, and temporary backoff
// after the portal signals pressure.
package traffic

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BaSui01/waybillflow/types"
)

// Snapshot reports the controller state at one instant.
type Snapshot struct {
	ActiveRequests       int     `json:"active_requests"`
	QueuedRequests       int     `json:"queued_requests"`
	NextAllowedInSeconds float64 `json:"next_allowed_in_seconds"`
	BlockedForSeconds    float64 `json:"blocked_for_seconds"`
	ActiveSafe           int     `json:"active_safe"`
	ActiveFull           int     `json:"active_full"`
	QueuedSafe           int     `json:"queued_safe"`
	QueuedFull           int     `json:"queued_full"`
}

// Options configures a Controller.
type Options struct {
	MaxConcurrent   int
	MinGap          time.Duration
	Jitter          time.Duration
	BlockBackoff    time.Duration
	BlockBackoffMax time.Duration
}

// Controller serializes portal access across all workflows. Admission is a
// weighted semaphore; once admitted a request still waits on the shared
// pacing schedule, so starts never come closer together than MinGap plus
// a random jitter slice.
type Controller struct {
	sem    *semaphore.Weighted
	logger *zap.Logger
	opts   Options

	mu            sync.Mutex
	nextAllowedAt time.Time
	blockedUntil  time.Time
	active        int
	queued        int
	activeByMode  map[types.OperationMode]int
	queuedByMode  map[types.OperationMode]int
}

// NewController builds a Controller from opts, clamping nonsensical values.
func NewController(opts Options, logger *zap.Logger) *Controller {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.MinGap < 0 {
		opts.MinGap = 0
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	if opts.BlockBackoff < 0 {
		opts.BlockBackoff = 0
	}
	if opts.BlockBackoffMax < opts.BlockBackoff {
		opts.BlockBackoffMax = opts.BlockBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		sem:          semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		logger:       logger,
		opts:         opts,
		activeByMode: map[types.OperationMode]int{types.ModeSafe: 0, types.ModeFull: 0},
		queuedByMode: map[types.OperationMode]int{types.ModeSafe: 0, types.ModeFull: 0},
	}
}

// Acquire blocks until a slot is free and the pacing schedule allows a new
// start. On error the slot is returned and counters are rolled back.
func (c *Controller) Acquire(ctx context.Context, mode types.OperationMode) error {
	mode = mode.Normalized()

	c.mu.Lock()
	c.queued++
	c.queuedByMode[mode]++
	c.mu.Unlock()

	err := c.sem.Acquire(ctx, 1)

	c.mu.Lock()
	c.queued = decrement(c.queued)
	c.queuedByMode[mode] = decrement(c.queuedByMode[mode])
	if err == nil {
		c.active++
		c.activeByMode[mode]++
	}
	c.mu.Unlock()

	if err != nil {
		// The caller gave up while queued; that is not portal throttling.
		return types.NewError(types.ErrCancelled, "admission wait cancelled").WithCause(err)
	}

	if err := c.waitForPacing(ctx); err != nil {
		c.mu.Lock()
		c.active = decrement(c.active)
		c.activeByMode[mode] = decrement(c.activeByMode[mode])
		c.mu.Unlock()
		c.sem.Release(1)
		return err
	}

	return nil
}

// Release returns a slot acquired with Acquire.
func (c *Controller) Release(mode types.OperationMode) {
	mode = mode.Normalized()

	c.mu.Lock()
	c.active = decrement(c.active)
	c.activeByMode[mode] = decrement(c.activeByMode[mode])
	c.mu.Unlock()

	c.sem.Release(1)
}

// Handle runs fn inside an acquired slot and always releases it.
func (c *Controller) Handle(ctx context.Context, mode types.OperationMode, fn func(context.Context) error) error {
	if err := c.Acquire(ctx, mode); err != nil {
		return err
	}
	defer c.Release(mode)
	return fn(ctx)
}

// waitForPacing sleeps until both the pacing schedule and any blackout
// window have passed, then claims the next window. The wait happens
// outside the mutex so Snapshot and MarkTemporaryBlock stay responsive;
// the loop re-checks because another request may claim the window first.
func (c *Controller) waitForPacing(ctx context.Context) error {
	for {
		c.mu.Lock()
		now := time.Now()
		wait := c.nextAllowedAt.Sub(now)
		if blocked := c.blockedUntil.Sub(now); blocked > wait {
			wait = blocked
		}
		if wait <= 0 {
			gap := c.opts.MinGap
			if c.opts.Jitter > 0 {
				gap += time.Duration(rand.Float64() * float64(c.opts.Jitter))
			}
			c.nextAllowedAt = now.Add(gap)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return types.NewError(types.ErrCancelled, "pacing wait cancelled").WithCause(ctx.Err())
		case <-timer.C:
		}
	}
}

// MarkTemporaryBlock freezes new starts for a backoff window. The window
// only ever extends, never shrinks, so overlapping signals cannot shorten
// an existing blackout.
func (c *Controller) MarkTemporaryBlock(multiplier float64) {
	if multiplier < 1.0 {
		multiplier = 1.0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	backoff := time.Duration(float64(c.opts.BlockBackoff) * multiplier)
	if backoff > c.opts.BlockBackoffMax {
		backoff = c.opts.BlockBackoffMax
	}

	candidate := time.Now().Add(backoff)
	if candidate.After(c.blockedUntil) {
		c.blockedUntil = candidate
	}

	c.logger.Warn("portal pressure detected, pausing new starts",
		zap.Duration("backoff", backoff),
		zap.Float64("multiplier", multiplier),
	)
}

// Snapshot returns current counters and remaining wait windows.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	return Snapshot{
		ActiveRequests:       c.active,
		QueuedRequests:       c.queued,
		NextAllowedInSeconds: clampSeconds(c.nextAllowedAt.Sub(now)),
		BlockedForSeconds:    clampSeconds(c.blockedUntil.Sub(now)),
		ActiveSafe:           c.activeByMode[types.ModeSafe],
		ActiveFull:           c.activeByMode[types.ModeFull],
		QueuedSafe:           c.queuedByMode[types.ModeSafe],
		QueuedFull:           c.queuedByMode[types.ModeFull],
	}
}

func decrement(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}

func clampSeconds(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return d.Seconds()
}
