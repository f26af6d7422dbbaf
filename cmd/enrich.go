package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lepinkainen/crate/internal/enrichment"
	"github.com/lepinkainen/crate/internal/tui"
)

const progressLogInterval = 5 * time.Second

// lookupJob is one lookup of a batch.
type lookupJob struct {
	Key   string
	Query enrichment.Query
}

// batchSummary counts the outcomes of a batch.
type batchSummary struct {
	Matched   int
	NoMatch   int
	Failed    int
	Cancelled int
}

func (s batchSummary) String() string {
	return fmt.Sprintf("%d matched, %d without match, %d failed, %d cancelled", s.Matched, s.NoMatch, s.Failed, s.Cancelled)
}

// runBatch looks up every job through the coordinator, showing progress either
// as a progress bar or as throttled log lines. Results are keyed by job key;
// jobs that were cancelled have no entry.
func runBatch(ctx context.Context, app *App, gateway enrichment.Gateway, jobs []lookupJob) (map[string]enrichment.Result, batchSummary) {
	results := make(map[string]enrichment.Result, len(jobs))
	if len(jobs) == 0 {
		return results, batchSummary{}
	}

	var coordinator *enrichment.Coordinator
	coordinator = app.Coordinator(gateway, func(err error) {
		slog.Error("Discogs rejected the credentials, stopping batch. Set DISCOGS_TOKEN or run `crate auth login`", "error", err)
		coordinator.CancelAll()
	})
	stop := context.AfterFunc(ctx, coordinator.CancelAll)
	defer stop()

	tracker := enrichment.NewBatchProgress()
	updates, unsubscribe := tracker.Subscribe()
	tracker.StartBatch(len(jobs))

	var mu sync.Mutex
	for _, job := range jobs {
		coordinator.Start(job.Key, job.Query, func(result enrichment.Result) {
			mu.Lock()
			results[result.Key] = result
			mu.Unlock()
			tracker.Increment()
		})
	}

	done := make(chan struct{})
	go func() {
		coordinator.Wait()
		tracker.FinishBatch()
		unsubscribe()
		close(done)
	}()

	if app.interactive {
		cancelled, err := tui.RunProgress(ctx, fmt.Sprintf("Looking up %d records on Discogs", len(jobs)), updates)
		if err != nil {
			slog.Warn("Progress display failed, continuing without it", "error", err)
			tui.LogProgress(ctx, updates, progressLogInterval)
		}
		if cancelled {
			slog.Info("Batch cancelled, waiting for running lookups to stop")
			coordinator.CancelAll()
		}
	} else {
		tui.LogProgress(ctx, updates, progressLogInterval)
	}
	<-done

	var summary batchSummary
	for _, result := range results {
		switch result.Outcome {
		case enrichment.OutcomeMatched:
			summary.Matched++
		case enrichment.OutcomeNoMatch:
			summary.NoMatch++
		case enrichment.OutcomeFailed:
			summary.Failed++
		}
	}
	summary.Cancelled = len(jobs) - len(results)
	return results, summary
}
