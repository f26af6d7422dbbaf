package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/crate/internal/enrichment"
)

func TestProgressViewUpdates(t *testing.T) {
	v := NewProgressView("Enriching collection")

	_, cmd := v.Update(ProgressMsg{Completed: 3, Total: 12})
	assert.Nil(t, cmd)
	assert.Equal(t, enrichment.Progress{Completed: 3, Total: 12}, v.Current())
	assert.Contains(t, v.View(), "3/12")
	assert.Contains(t, v.View(), "Enriching collection")

	_, cmd = v.Update(progressDoneMsg{})
	require.NotNil(t, cmd)
	assert.False(t, v.Cancelled())
}

func TestProgressViewCancel(t *testing.T) {
	v := NewProgressView("Enriching collection")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, v.Cancelled())
	assert.Contains(t, v.View(), "cancelled")
}

func TestLogProgressReturnsLastUpdate(t *testing.T) {
	tracker := enrichment.NewBatchProgress()
	updates, unsubscribe := tracker.Subscribe()

	done := make(chan enrichment.Progress, 1)
	go func() {
		done <- LogProgress(context.Background(), updates, time.Hour)
	}()

	tracker.StartBatch(2)
	tracker.Increment()
	tracker.Increment()
	// Wait for the final value to be consumed before closing the channel.
	require.Eventually(t, func() bool { return len(updates) == 0 }, time.Second, time.Millisecond)
	unsubscribe()

	select {
	case last := <-done:
		assert.Equal(t, 2, last.Total)
		assert.True(t, last.Done())
	case <-time.After(time.Second):
		t.Fatal("LogProgress did not return after the channel closed")
	}
}

func TestLogProgressStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	updates := make(chan enrichment.Progress)
	last := LogProgress(ctx, updates, time.Second)
	assert.Equal(t, enrichment.Progress{}, last)
}
