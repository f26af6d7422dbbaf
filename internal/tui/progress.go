package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"github.com/lepinkainen/crate/internal/enrichment"
)

const progressBarWidth = 50

// ProgressMsg carries a batch progress update into the view.
type ProgressMsg enrichment.Progress

type progressDoneMsg struct{}

// ProgressView renders a progress bar for a running batch import.
type ProgressView struct {
	bar       progress.Model
	title     string
	current   enrichment.Progress
	done      bool
	cancelled bool
}

// NewProgressView creates a view titled title.
func NewProgressView(title string) *ProgressView {
	return &ProgressView{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarWidth)),
		title: title,
	}
}

// Cancelled reports whether the user aborted the batch.
func (v *ProgressView) Cancelled() bool { return v.cancelled }

// Current returns the last progress shown.
func (v *ProgressView) Current() enrichment.Progress { return v.current }

func (v *ProgressView) Init() tea.Cmd { return nil }

func (v *ProgressView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		v.current = enrichment.Progress(msg)
		return v, nil
	case progressDoneMsg:
		v.done = true
		return v, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			v.cancelled = true
			return v, tea.Quit
		}
	case tea.WindowSizeMsg:
		v.bar.Width = clamp(progressBarWidth, msg.Width-4, 10)
	}
	return v, nil
}

func (v *ProgressView) View() string {
	counts := fmt.Sprintf("%d/%d", v.current.Completed, v.current.Total)
	if v.cancelled {
		counts += " (cancelled)"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(v.title),
		v.bar.ViewAs(v.current.Fraction()),
		helpStyle.Render(counts+" | q cancel"),
	) + "\n"
}

// RunProgress shows updates until the channel closes or ctx ends. It returns
// true when the user cancelled from the keyboard.
func RunProgress(ctx context.Context, title string, updates <-chan enrichment.Progress) (bool, error) {
	view := NewProgressView(title)
	p := tea.NewProgram(view)

	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case update, ok := <-updates:
				if !ok {
					p.Send(progressDoneMsg{})
					return
				}
				p.Send(ProgressMsg(update))
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return false, err
	}
	return view.Cancelled(), nil
}

// LogProgress logs updates at most once per interval, plus the final one.
// It is the non-interactive alternative to RunProgress.
func LogProgress(ctx context.Context, updates <-chan enrichment.Progress, interval time.Duration) enrichment.Progress {
	sometimes := rate.Sometimes{Interval: interval}
	var last enrichment.Progress
	for {
		select {
		case <-ctx.Done():
			return last
		case update, ok := <-updates:
			if !ok {
				if last.Total > 0 {
					slog.Info("Enrichment finished", "completed", last.Completed, "total", last.Total)
				}
				return last
			}
			if update.Total == 0 {
				continue
			}
			last = update
			sometimes.Do(func() {
				slog.Info("Enrichment progress",
					"completed", update.Completed,
					"total", update.Total,
					"percent", fmt.Sprintf("%.0f%%", update.Fraction()*100))
			})
		}
	}
}
