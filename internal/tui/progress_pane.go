package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskwatch/internal/events"
)

// ProgressPaneModel shows the run's counts and a completion bar.
type ProgressPaneModel struct {
	total   int // number of inputs in the batch
	counts  events.RunProgressEvent
	bar     progress.Model
	width   int
	height  int
	focused bool
}

// NewProgressPaneModel creates a progress pane for a batch of total inputs.
func NewProgressPaneModel(total int) ProgressPaneModel {
	return ProgressPaneModel{
		total: total,
		bar:   progress.New(progress.WithDefaultGradient()),
	}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	if p, ok := msg.(events.RunProgressEvent); ok {
		m.counts = p
	}
	return m, nil
}

// Percent returns the fraction of inputs with a terminal outcome.
func (m ProgressPaneModel) Percent() float64 {
	if m.total <= 0 {
		return 0
	}
	// Re-run rounds report the same inputs again.
	return min(1, float64(m.counts.Finished())/float64(m.total))
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Run Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	queued := max(0, m.total-m.counts.Started)
	b.WriteString(fmt.Sprintf("Inputs:    %d\n", m.total))
	b.WriteString(fmt.Sprintf("Queued:    %d\n", queued))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprint(m.counts.Running))))
	b.WriteString(fmt.Sprintf("Stalled:   %s\n", StyleStatusStalled.Render(fmt.Sprint(m.counts.Stalled))))
	b.WriteString(fmt.Sprintf("Completed: %s\n", StyleStatusComplete.Render(fmt.Sprint(m.counts.Completed))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprint(m.counts.Failed))))
	b.WriteString(fmt.Sprintf("Cancelled: %s\n", StyleStatusCancelled.Render(fmt.Sprint(m.counts.Cancelled))))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString(fmt.Sprintf("  %d/%d\n", m.counts.Finished(), m.total))

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.bar.Width = min(max(w-16, 10), 60)
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
