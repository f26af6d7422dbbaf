package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/lepinkainen/crate/internal/discogs"
	crateerrors "github.com/lepinkainen/crate/internal/errors"
	"github.com/lepinkainen/crate/internal/metrics"
	"github.com/lepinkainen/crate/internal/ratelimit"
)

const (
	defaultJitterMin   = 500 * time.Millisecond
	defaultJitterMax   = 2 * time.Second
	defaultConcurrency = 8
)

// Sink receives the result of a lookup. It is called at most once per Start and
// never for a cancelled or replaced lookup.
type Sink func(Result)

type task struct {
	id     uuid.UUID
	gen    uint64
	cancel context.CancelFunc
	state  State
}

// Coordinator runs lookups keyed by record. Starting a key that is already in
// flight cancels the old lookup; the last Start wins.
type Coordinator struct {
	gateway        Gateway
	jitterMin      time.Duration
	jitterMax      time.Duration
	concurrency    int64
	sem            *semaphore.Weighted
	clock          ratelimit.Clock
	metrics        *metrics.Metrics
	onUnauthorized func(error)
	unauthorized   atomic.Bool

	mu sync.Mutex
	// tasks holds only pending and running lookups. A lookup is dropped as
	// soon as it reaches a terminal state; finished keeps that state for State.
	tasks    map[string]*task
	finished map[string]State
	gen      uint64
	wg       sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithJitter sets the random delay range applied before each lookup.
func WithJitter(minDelay, maxDelay time.Duration) Option {
	return func(c *Coordinator) {
		if minDelay < 0 {
			minDelay = 0
		}
		if maxDelay < minDelay {
			maxDelay = minDelay
		}
		c.jitterMin, c.jitterMax = minDelay, maxDelay
	}
}

// WithConcurrency caps the number of lookups talking to Discogs at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = int64(n)
		}
	}
}

// WithClock sets the time source used for jitter sleeps.
func WithClock(clock ratelimit.Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithUnauthorizedHandler registers a callback fired the first time a lookup is
// rejected for bad credentials.
func WithUnauthorizedHandler(fn func(error)) Option {
	return func(c *Coordinator) {
		c.onUnauthorized = fn
	}
}

// WithMetrics records lookup outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// NewCoordinator creates a coordinator that resolves lookups through gateway.
func NewCoordinator(gateway Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		gateway:     gateway,
		jitterMin:   defaultJitterMin,
		jitterMax:   defaultJitterMax,
		concurrency: defaultConcurrency,
		clock:       ratelimit.SystemClock{},
		tasks:       make(map[string]*task),
		finished:    make(map[string]State),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sem = semaphore.NewWeighted(c.concurrency)
	return c
}

// Start begins a lookup for key, replacing any lookup already running for it.
func (c *Coordinator) Start(key string, query Query, sink Sink) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if prev, ok := c.tasks[key]; ok {
		prev.cancel()
		slog.Debug("Replacing lookup", "key", key, "lookup_id", prev.id)
	}
	delete(c.finished, key)
	c.gen++
	t := &task{id: uuid.New(), gen: c.gen, cancel: cancel, state: StatePending}
	c.tasks[key] = t
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(ctx, key, t, query, sink)
}

// Cancel stops the lookup for key. Its sink will not be called. Calling Cancel
// for an unknown or finished key does nothing.
func (c *Coordinator) Cancel(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tasks[key]
	if !ok {
		return
	}
	c.finish(key, t, StateCancelled)
	slog.Debug("Lookup cancelled", "key", key, "lookup_id", t.id)
}

// CancelAll cancels every lookup that has not finished.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, t := range c.tasks {
		c.finish(key, t, StateCancelled)
	}
}

// Wait blocks until every started lookup has returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// State reports the lifecycle state of the latest lookup for key.
func (c *Coordinator) State(key string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.tasks[key]; ok {
		return t.state, true
	}
	state, ok := c.finished[key]
	return state, ok
}

// ResetUnauthorized re-arms the unauthorized handler, typically after the user
// reconnects.
func (c *Coordinator) ResetUnauthorized() {
	c.unauthorized.Store(false)
}

func (c *Coordinator) run(ctx context.Context, key string, t *task, query Query, sink Sink) {
	defer c.wg.Done()
	defer t.cancel()

	c.metrics.LookupStarted()
	logger := slog.With("key", key, "lookup_id", t.id, "generation", t.gen, "query", query.String())

	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.metrics.LookupFinished("cancelled")
		return
	}
	defer c.sem.Release(1)

	if !c.transition(ctx, key, t, StateRunning) {
		c.metrics.LookupFinished("cancelled")
		return
	}

	if err := c.clock.Sleep(ctx, c.jitter()); err != nil {
		c.metrics.LookupFinished("cancelled")
		return
	}

	logger.Debug("Lookup running")
	result, err := c.lookup(ctx, key, query)
	if err != nil && ctx.Err() != nil {
		logger.Debug("Lookup abandoned", "error", err)
		c.metrics.LookupFinished("cancelled")
		return
	}

	final := StateCompleted
	if result.Outcome == OutcomeFailed {
		final = StateFailed
	}
	if !c.transition(ctx, key, t, final) {
		c.metrics.LookupFinished("cancelled")
		return
	}

	c.metrics.LookupFinished(string(result.Outcome))
	logger.Debug("Lookup finished", "outcome", result.Outcome, "release_id", result.ReleaseID)
	if sink != nil {
		sink(result)
	}
}

// transition moves t to next if it is still the current task for key and has
// not been cancelled.
func (c *Coordinator) transition(ctx context.Context, key string, t *task, next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil || c.tasks[key] != t {
		return false
	}
	if next.Terminal() {
		c.finish(key, t, next)
		return true
	}
	t.state = next
	return true
}

// finish must be called with mu held. It cancels t and forgets it, keeping
// only its terminal state.
func (c *Coordinator) finish(key string, t *task, state State) {
	t.cancel()
	delete(c.tasks, key)
	c.finished[key] = state
}

func (c *Coordinator) jitter() time.Duration {
	span := c.jitterMax - c.jitterMin
	if span <= 0 {
		return c.jitterMin
	}
	return c.jitterMin + rand.N(span+1)
}

// lookup runs the search for query and, if a release resolved, fetches its
// tracklist. A non-nil error means the lookup failed or was interrupted.
func (c *Coordinator) lookup(ctx context.Context, key string, query Query) (Result, error) {
	result := Result{Key: key}

	switch query.Kind {
	case KindArtistTitle:
		match, err := c.gateway.SearchByArtistTitle(ctx, query.Artist, query.Title)
		if err != nil {
			return c.failed(key, err), err
		}
		if !match.Found() {
			return Result{Key: key, Outcome: OutcomeNoMatch}, nil
		}
		result.ArtworkURL = match.CoverURL
		result.ThumbURL = match.ThumbURL
		result.ReleaseID = match.ReleaseID

	default:
		var (
			summary discogs.ReleaseSummary
			err     error
		)
		if query.Kind == KindCatalogNumber {
			summary, err = c.gateway.SearchByIdentifier(ctx, query.CatalogNumber)
		} else {
			summary, err = c.gateway.SearchByBarcode(ctx, query.Barcode)
		}
		if err != nil {
			if crateerrors.IsNoResults(err) {
				return Result{Key: key, Outcome: OutcomeNoMatch}, nil
			}
			return c.failed(key, err), err
		}
		result.Artist = summary.Artist
		result.Title = summary.Title
		result.Genre = summary.Genre
		result.Year = summary.Year
		result.ArtworkURL = summary.CoverURL
		result.ThumbURL = summary.ThumbURL
		result.ReleaseID = summary.ReleaseID
	}

	result.Outcome = OutcomeMatched
	if result.ReleaseID == 0 {
		return result, nil
	}

	detail, err := c.gateway.GetTracklist(ctx, result.ReleaseID)
	if err != nil {
		if ctx.Err() != nil {
			return result, err
		}
		c.noteUnauthorized(err)
		// The search already matched; keep what it found.
		slog.Warn("Tracklist fetch failed", "key", key, "release_id", result.ReleaseID, "error", err)
		return result, nil
	}

	result.Tracklist = detail.Tracks
	result.Notes = detail.Notes
	if result.Genre == "" {
		result.Genre = detail.Genre
	}
	if result.Year == "" {
		result.Year = detail.Year
	}
	if discogs.IsPlaceholderImage(result.ArtworkURL) && detail.CoverURL != "" {
		result.ArtworkURL = detail.CoverURL
		result.ThumbURL = detail.ThumbURL
	}
	return result, nil
}

func (c *Coordinator) failed(key string, err error) Result {
	c.noteUnauthorized(err)
	if !errors.Is(err, context.Canceled) {
		slog.Warn("Lookup failed", "key", key, "error", err)
	}
	return Result{Key: key, Outcome: OutcomeFailed, Err: err}
}

func (c *Coordinator) noteUnauthorized(err error) {
	if !crateerrors.IsUnauthorized(err) || c.onUnauthorized == nil {
		return
	}
	if c.unauthorized.CompareAndSwap(false, true) {
		c.onUnauthorized(err)
	}
}
