package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskwatch/internal/events"
)

// Task status values shown in the pane.
const (
	statusRunning      = "running"
	statusStalled      = "stalled"
	statusUnresponsive = "unresponsive"
	statusCompleted    = "completed"
	statusFailed       = "failed"
	statusCrashed      = "crashed"
	statusCancelled    = "cancelled"
)

// listWidth is the width of the task list column.
const listWidth = 28

// TaskState is the TUI's view of one task.
type TaskState struct {
	ID         int
	Input      string
	Status     string
	Beats      int // healthy liveness checks
	LastSilent time.Duration
	Log        []string
	StartTime  time.Time
	EndTime    time.Time
}

// TaskPaneModel lists tasks and shows the event log of the selected one.
type TaskPaneModel struct {
	tasks       map[int]*TaskState
	taskOrder   []int // dispatch order
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[int]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &TaskState{
				ID:        msg.ID,
				Input:     msg.Input,
				Status:    statusRunning,
				StartTime: msg.Timestamp,
			}
			m.taskOrder = append(m.taskOrder, msg.ID)
			m.appendLog(msg.ID, msg.Timestamp, "started")
			if len(m.taskOrder) == 1 {
				m.selectedIdx = 0
				m.updateViewportContent()
			}
		}

	case events.TaskHeartbeatEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Beats++
			task.LastSilent = msg.Elapsed
			// Heartbeats arrive every tick; repaint the log at most every 50ms.
			if m.selectedTaskID() == msg.ID {
				m.updateTag++
				tag := m.updateTag
				return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
					return tickMsg{tag: tag}
				})
			}
		}

	case events.TaskStalledEvent:
		m.transition(msg.ID, msg.Timestamp, statusStalled, "no heartbeat, cancel requested")

	case events.TaskUnresponsiveEvent:
		m.transition(msg.ID, msg.Timestamp, statusUnresponsive, "ignored cancellation, terminating")

	case events.TaskCompletedEvent:
		m.finish(msg.ID, msg.Timestamp, statusCompleted, fmt.Sprintf("completed: %s", msg.Result))

	case events.TaskFailedEvent:
		m.finish(msg.ID, msg.Timestamp, statusFailed, fmt.Sprintf("failed: %v", msg.Err))

	case events.TaskCrashedEvent:
		m.finish(msg.ID, msg.Timestamp, statusCrashed, "crashed")

	case events.TaskCancelledEvent:
		m.finish(msg.ID, msg.Timestamp, statusCancelled, "cancellation acknowledged")

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// transition records a non-terminal status change, logging it only once.
func (m *TaskPaneModel) transition(id int, at time.Time, status, line string) {
	task, exists := m.tasks[id]
	if !exists || task.Status == status {
		return
	}
	task.Status = status
	m.appendLog(id, at, line)
}

// finish records a terminal status.
func (m *TaskPaneModel) finish(id int, at time.Time, status, line string) {
	task, exists := m.tasks[id]
	if !exists {
		return
	}
	task.Status = status
	task.EndTime = at
	m.appendLog(id, at, fmt.Sprintf("%s (after %v)", line, at.Sub(task.StartTime).Round(time.Millisecond)))
}

func (m *TaskPaneModel) appendLog(id int, at time.Time, line string) {
	task := m.tasks[id]
	task.Log = append(task.Log, fmt.Sprintf("%s  %s", at.Format("15:04:05.000"), line))
	if m.selectedTaskID() == id {
		m.updateViewportContent()
	}
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderTaskList renders the task list column.
func (m TaskPaneModel) renderTaskList() string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(listWidth, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusCancelled.Render("Waiting..."))
	}
	for i, id := range m.taskOrder {
		task := m.tasks[id]
		name := fmt.Sprintf("%d %s", task.ID, task.Input)
		if len(name) > listWidth-4 {
			name = name[:listWidth-7] + "..."
		}

		line := fmt.Sprintf("%s %s", StatusIcon(task.Status), name)
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(listWidth).
		Height(m.height - 2).
		Render(b.String())
}

func (m TaskPaneModel) selectedTaskID() int {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return events.NoTask
}

// Selected returns the currently selected task, if any.
func (m TaskPaneModel) Selected() (*TaskState, bool) {
	task, ok := m.tasks[m.selectedTaskID()]
	return task, ok
}

// updateViewportContent shows the selected task's header and event log.
func (m *TaskPaneModel) updateViewportContent() {
	task, ok := m.Selected()
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task %d: %s\n", task.ID, task.Input)
	fmt.Fprintf(&b, "Status: %s  Heartbeats: %s\n", task.Status, strings.Repeat(".", min(task.Beats, 40)))
	if task.Status == statusRunning {
		fmt.Fprintf(&b, "Last heartbeat: %v ago\n", task.LastSilent.Round(time.Millisecond))
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(task.Log, "\n"))

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *TaskPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-listWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
