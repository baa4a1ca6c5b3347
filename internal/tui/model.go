package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"imgcrunch/internal/pipeline"
)

// Model renders live batch progress from pipeline progress deltas.
type Model struct {
	updates  <-chan pipeline.ProgressUpdate
	styles   Styles
	started  time.Time
	width    int
	total    int
	done     int
	resized  int
	errors   int
	bytesIn  int64
	bytesOut int64
	quitting bool
}

type doneMsg struct{}

type updateMsg pipeline.ProgressUpdate

func NewModel(updates <-chan pipeline.ProgressUpdate, styles Styles) Model {
	return Model{updates: updates, styles: styles, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.total += msg.TotalDelta
		m.done += msg.ProcessedDelta + msg.ErrorDelta
		m.resized += msg.ResizedDelta
		m.errors += msg.ErrorDelta
		m.bytesIn += msg.BytesInDelta
		m.bytesOut += msg.BytesOutDelta
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.done) / float64(m.total)
		if ratio > 1 {
			ratio = 1
		}
	}

	status := fmt.Sprintf("Images: %d/%d", m.done, m.total)
	if m.resized > 0 {
		status += fmt.Sprintf("  resized:%d", m.resized)
	}
	saved := ""
	if m.bytesIn > 0 && m.bytesOut > 0 {
		saved = fmt.Sprintf("Saved so far: %s", FormatBytes(m.bytesIn-m.bytesOut))
	}

	lines := []string{
		m.styles.Title.Render("imgcrunch"),
		m.styles.Label.Render(status) + m.styles.Error.Render(errorSuffix(m.errors)),
		m.styles.Dim.Render(saved),
		m.styles.Dim.Render(fmt.Sprintf("Elapsed: %s", time.Since(m.started).Round(time.Millisecond))),
		m.styles.Label.Render(renderBar(barWidth, ratio)),
	}

	return strings.Join(lines, "\n")
}

func errorSuffix(errors int) string {
	if errors == 0 {
		return ""
	}
	return fmt.Sprintf("  errors:%d", errors)
}

func listenForUpdates(updates <-chan pipeline.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}
