// Package tui provides interactive terminal UI components.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/crate/internal/discogs"
)

const (
	defaultListWidth  = 72
	defaultListHeight = 20
)

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// SelectionAction represents the user's action in the selection UI.
type SelectionAction int

const (
	// ActionNone indicates no action was taken.
	ActionNone SelectionAction = iota
	// ActionSelected indicates the user selected an item.
	ActionSelected
	// ActionSkipped indicates the user skipped the selection.
	ActionSkipped
	// ActionStopped indicates the user stopped processing entirely.
	ActionStopped
)

// SelectionResult holds the result of a TUI selection.
type SelectionResult struct {
	Action    SelectionAction
	Selection *discogs.SearchHit
}

type releaseItem struct {
	discogs.SearchHit
}

func (i releaseItem) Title() string {
	if year := i.YearString(); year != "" {
		return fmt.Sprintf("%s (%s)", i.SearchHit.Title, year)
	}
	return i.SearchHit.Title
}

func (i releaseItem) FilterValue() string {
	return i.SearchHit.Title
}

func (i releaseItem) Description() string {
	return formatMetadata(i.SearchHit, 0)
}

type itemStyles struct {
	normal        lipgloss.Style
	selected      lipgloss.Style
	formatStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	metadataStyle lipgloss.Style
}

func newItemStyles() itemStyles {
	asciiBorder := lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}

	container := lipgloss.NewStyle().
		Border(asciiBorder).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Foreground(lipgloss.Color("252"))

	selected := container.Copy().
		BorderForeground(lipgloss.Color("214")).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("237"))

	return itemStyles{
		normal:   container,
		selected: selected,
		formatStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("110")),
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("254")),
		metadataStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true),
	}
}

type releaseDelegate struct {
	styles itemStyles
}

func newDelegate() releaseDelegate {
	return releaseDelegate{styles: newItemStyles()}
}

func (d releaseDelegate) Height() int                         { return 4 }
func (d releaseDelegate) Spacing() int                        { return 1 }
func (d releaseDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d releaseDelegate) Render(w io.Writer, m list.Model, idx int, item list.Item) {
	hit, ok := item.(releaseItem)
	if !ok {
		return
	}

	formatLine := d.styles.formatStyle.Render(fmt.Sprintf("[%s]", strings.ToUpper(formatLabel(hit.SearchHit))))
	titleLine := d.styles.titleStyle.Render(truncate(hit.Title(), m.Width()-4))
	metadataLine := d.styles.metadataStyle.Render(formatMetadata(hit.SearchHit, m.Width()-4))

	content := lipgloss.JoinVertical(lipgloss.Left, formatLine, titleLine, metadataLine)

	container := d.styles.normal
	if idx == m.Index() {
		container = d.styles.selected
	}
	_, _ = fmt.Fprint(w, container.Render(content))
}

type model struct {
	list   list.Model
	query  string
	result SelectionResult
}

func newModel(query string, items []releaseItem) *model {
	listItems := make([]list.Item, len(items))
	for i, item := range items {
		listItems[i] = item
	}

	l := list.New(listItems, newDelegate(), defaultListWidth, defaultListHeight)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = lipgloss.NewStyle()

	return &model{
		list:   l,
		query:  query,
		result: SelectionResult{Action: ActionNone},
	}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if selected, ok := m.list.SelectedItem().(releaseItem); ok {
				hit := selected.SearchHit
				m.result = SelectionResult{Action: ActionSelected, Selection: &hit}
				return m, tea.Quit
			}
		case "s", "esc":
			m.result = SelectionResult{Action: ActionSkipped}
			return m, tea.Quit
		case "ctrl+c", "q":
			m.result = SelectionResult{Action: ActionStopped}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		width := clamp(defaultListWidth, msg.Width-4, 40)
		height := clamp(defaultListHeight, msg.Height-6, 5)
		m.list.SetSize(width, height)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	header := headerStyle.Render(fmt.Sprintf("Discogs releases matching: %s", m.query))
	buttons := lipgloss.JoinHorizontal(
		lipgloss.Left,
		skipButtonStyle.Render(" Skip "),
		lipgloss.NewStyle().Padding(0, 2).Render(""),
		stopButtonStyle.Render(" Stop "),
	)
	help := helpStyle.Render("Up/Down navigate | Enter select | s skip | q stop")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.list.View(), buttons, help)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	skipButtonStyle = lipgloss.NewStyle().
			MarginTop(1).
			Padding(0, 2).
			Background(lipgloss.Color("178")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	stopButtonStyle = lipgloss.NewStyle().
			MarginTop(1).
			Padding(0, 2).
			Background(lipgloss.Color("161")).
			Foreground(lipgloss.Color("230")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// SelectRelease lets the user pick one of several Discogs search hits.
// Hits without any artwork are listed last.
func SelectRelease(query string, hits []discogs.SearchHit) (SelectionResult, error) {
	if len(hits) == 0 {
		return SelectionResult{Action: ActionSkipped}, nil
	}

	m := newModel(query, releaseItems(hits))
	finalModel, err := runProgram(m)
	if err != nil {
		return SelectionResult{}, err
	}

	if typed, ok := finalModel.(*model); ok {
		return typed.result, nil
	}
	return SelectionResult{}, fmt.Errorf("unexpected program result")
}

func releaseItems(hits []discogs.SearchHit) []releaseItem {
	items := make([]releaseItem, 0, len(hits))
	var bare []releaseItem
	for _, hit := range hits {
		if hit.CoverImage == "" && hit.Thumb == "" {
			bare = append(bare, releaseItem{SearchHit: hit})
			continue
		}
		items = append(items, releaseItem{SearchHit: hit})
	}
	return append(items, bare...)
}

func formatLabel(hit discogs.SearchHit) string {
	if len(hit.Format) == 0 {
		return "release"
	}
	return hit.Format[0]
}

// formatMetadata joins label, catalog number, country and genre.
func formatMetadata(hit discogs.SearchHit, availableWidth int) string {
	var parts []string
	if len(hit.Label) > 0 {
		parts = append(parts, hit.Label[0])
	}
	if hit.CatNo != "" {
		parts = append(parts, hit.CatNo)
	}
	if hit.Country != "" {
		parts = append(parts, hit.Country)
	}
	if genre := hit.FirstGenre(); genre != "" {
		parts = append(parts, genre)
	}

	if len(parts) == 0 {
		return "No metadata available"
	}
	return truncate(strings.Join(parts, " | "), availableWidth)
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if width <= 0 || len(runes) <= width {
		return value
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func clamp(defaultValue, available, minimum int) int {
	width := defaultValue
	if available > 0 && available < defaultValue {
		width = available
	}
	if width < minimum {
		width = minimum
	}
	return width
}
