// Package ratelimit paces outbound API traffic.
//
// Gate enforces a hard "N requests per trailing window" budget and absorbs
// server-declared cooldowns. Limiter is a lighter token bucket for hosts without
// a published window.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWindow is the sliding window Discogs counts requests over.
	DefaultWindow = time.Minute
	// DefaultExhaustedCooldown is applied when the server reports zero remaining
	// quota without saying how long to wait.
	DefaultExhaustedCooldown = 60 * time.Second
)

// Gate admits at most max requests in any trailing window.
//
// Admissions are strictly ordered: a caller holds the turn slot for the whole
// check-prune-wait-append sequence, so concurrent callers queue instead of racing
// on the window. Cooldown signals take only the state mutex and never wait for the
// turn, so an executor can extend a cooldown while another caller is sleeping.
type Gate struct {
	max               int
	window            time.Duration
	exhaustedCooldown time.Duration
	clock             Clock

	turn chan struct{}

	mu            sync.Mutex
	timestamps    []time.Time
	cooldownUntil time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithWindow overrides the sliding window length.
func WithWindow(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithClock sets the time source.
func WithClock(c Clock) GateOption {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithExhaustedCooldown sets the cooldown used by SignalExhausted.
func WithExhaustedCooldown(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.exhaustedCooldown = d
		}
	}
}

// NewGate creates a gate admitting maxPerWindow requests per window.
func NewGate(maxPerWindow int, opts ...GateOption) *Gate {
	if maxPerWindow < 1 {
		maxPerWindow = 1
	}
	g := &Gate{
		max:               maxPerWindow,
		window:            DefaultWindow,
		exhaustedCooldown: DefaultExhaustedCooldown,
		clock:             SystemClock{},
		turn:              make(chan struct{}, 1),
		timestamps:        make([]time.Time, 0, maxPerWindow),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Clock returns the gate's time source so callers can share it for backoff sleeps.
func (g *Gate) Clock() Clock {
	return g.clock
}

// ExhaustedCooldown returns the cooldown SignalExhausted applies.
func (g *Gate) ExhaustedCooldown() time.Duration {
	return g.exhaustedCooldown
}

// Admit blocks until a request may be sent, then records it.
// If ctx is cancelled while queued or sleeping, nothing is recorded.
func (g *Gate) Admit(ctx context.Context) error {
	select {
	case g.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.turn }()

	for {
		wait := g.nextWait()
		if wait <= 0 {
			return nil
		}
		slog.Debug("Rate gate waiting", "wait", wait)
		if err := g.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// nextWait returns how long the caller must still wait. A zero return means the
// request was admitted and recorded.
func (g *Gate) nextWait() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()

	if !g.cooldownUntil.IsZero() {
		if now.Before(g.cooldownUntil) {
			return g.cooldownUntil.Sub(now)
		}
		g.cooldownUntil = time.Time{}
	}

	g.prune(now)

	// prune leaves only entries younger than the window, so this wait is positive.
	if len(g.timestamps) >= g.max {
		return g.window - now.Sub(g.timestamps[0])
	}

	g.timestamps = append(g.timestamps, now)
	return 0
}

func (g *Gate) prune(now time.Time) {
	cutoff := now.Add(-g.window)
	keep := 0
	for keep < len(g.timestamps) && !g.timestamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		g.timestamps = append(g.timestamps[:0], g.timestamps[keep:]...)
	}
}

// SignalCooldown blocks admissions until d from now. The latest call wins.
func (g *Gate) SignalCooldown(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cooldownUntil = g.clock.Now().Add(d)
	slog.Debug("Rate gate cooldown set", "until", g.cooldownUntil, "duration", d)
}

// SignalExhausted applies the configured cooldown after the server reported zero
// remaining quota.
func (g *Gate) SignalExhausted() {
	g.SignalCooldown(g.exhaustedCooldown)
}

// Stats is a point-in-time view of the gate.
type Stats struct {
	InWindow      int
	Max           int
	CooldownUntil time.Time
}

// Stats reports the current window occupancy and cooldown.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune(g.clock.Now())
	return Stats{
		InWindow:      len(g.timestamps),
		Max:           g.max,
		CooldownUntil: g.cooldownUntil,
	}
}
