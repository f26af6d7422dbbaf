package enrichment

import "sync"

// Progress is a point-in-time view of a batch.
type Progress struct {
	Completed int
	Total     int
}

// Fraction returns completion in [0, 1]. An empty batch reports 0.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Completed) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Done reports whether every item of a non-empty batch has completed.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Completed >= p.Total
}

// BatchProgress counts completed lookups of a batch import and publishes
// updates to subscribers. Subscribers only ever see the latest value.
type BatchProgress struct {
	mu          sync.Mutex
	completed   int
	total       int
	subscribers map[int]chan Progress
	nextID      int
}

// NewBatchProgress creates an idle tracker.
func NewBatchProgress() *BatchProgress {
	return &BatchProgress{subscribers: make(map[int]chan Progress)}
}

// StartBatch resets the counters for a batch of total items.
func (b *BatchProgress) StartBatch(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if total < 0 {
		total = 0
	}
	b.completed = 0
	b.total = total
	b.publish()
}

// Increment records one finished item.
func (b *BatchProgress) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed < b.total {
		b.completed++
	}
	b.publish()
}

// FinishBatch marks the batch complete, counting items that were cancelled or
// never started as done.
func (b *BatchProgress) FinishBatch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completed = b.total
	b.publish()
}

// Snapshot returns the current counters.
func (b *BatchProgress) Snapshot() Progress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Progress{Completed: b.completed, Total: b.total}
}

// IsImporting reports whether a batch is in progress.
func (b *BatchProgress) IsImporting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total > 0 && b.completed < b.total
}

// Subscribe returns a channel carrying progress updates and a function that
// unsubscribes and closes it. The current value is delivered immediately.
func (b *BatchProgress) Subscribe() (<-chan Progress, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers == nil {
		b.subscribers = make(map[int]chan Progress)
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Progress, 1)
	ch <- Progress{Completed: b.completed, Total: b.total}
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
}

// publish must be called with mu held. A slow subscriber's stale value is
// replaced so writers never block.
func (b *BatchProgress) publish() {
	p := Progress{Completed: b.completed, Total: b.total}
	for _, ch := range b.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- p
	}
}
