package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/taskwatch/internal/config"
	"github.com/aristath/taskwatch/internal/events"
)

func newTestModel(t *testing.T, total int) (Model, *events.EventBus) {
	t.Helper()
	bus := events.NewEventBus()
	t.Cleanup(bus.Close)
	dir := t.TempDir()
	m := New(bus, total, config.DefaultConfig(), dir+"/global.json", dir+"/project.json")
	return m, bus
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestTaskPane_Lifecycle(t *testing.T) {
	m, _ := newTestModel(t, 2)
	now := time.Now()

	m = update(t, m, events.TaskStartedEvent{ID: 0, Input: "a.txt", Timestamp: now})
	m = update(t, m, events.TaskStartedEvent{ID: 1, Input: "b.txt", Timestamp: now})
	m = update(t, m, events.TaskHeartbeatEvent{ID: 0, Elapsed: time.Second, Timestamp: now})
	m = update(t, m, events.TaskStalledEvent{ID: 1, Timestamp: now})
	m = update(t, m, events.TaskStalledEvent{ID: 1, Timestamp: now})
	m = update(t, m, events.TaskCompletedEvent{ID: 0, Result: "ok", Timestamp: now.Add(time.Second)})
	m = update(t, m, events.TaskFailedEvent{ID: 9, Err: errors.New("unknown task"), Timestamp: now})

	task := m.taskPane.tasks[0]
	if task.Status != statusCompleted || task.Beats != 1 {
		t.Errorf("task 0: expected completed with 1 beat, got %s with %d", task.Status, task.Beats)
	}

	stalled := m.taskPane.tasks[1]
	if stalled.Status != statusStalled {
		t.Errorf("task 1: expected stalled, got %s", stalled.Status)
	}
	// started + one stalled line, repeated stalls are not logged again
	if len(stalled.Log) != 2 {
		t.Errorf("task 1: expected 2 log lines, got %d: %v", len(stalled.Log), stalled.Log)
	}
	if _, exists := m.taskPane.tasks[9]; exists {
		t.Error("events for unknown tasks must be ignored")
	}
}

func TestTaskPane_Selection(t *testing.T) {
	m, _ := newTestModel(t, 3)
	m.taskPane.SetFocused(true)

	for id := 0; id < 3; id++ {
		m = update(t, m, events.TaskStartedEvent{ID: id, Input: "x", Timestamp: time.Now()})
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})

	task, ok := m.taskPane.Selected()
	if !ok || task.ID != 2 {
		t.Errorf("expected selection clamped at task 2, got %+v", task)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	if task, _ := m.taskPane.Selected(); task.ID != 1 {
		t.Errorf("expected task 1 selected, got %d", task.ID)
	}
}

func TestProgressPane(t *testing.T) {
	m, _ := newTestModel(t, 4)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	m = update(t, m, events.RunProgressEvent{Started: 3, Running: 1, Completed: 1, Failed: 1, Timestamp: time.Now()})

	if got := m.progressPane.Percent(); got != 0.5 {
		t.Errorf("expected 50%% finished, got %v", got)
	}
	if view := m.View(); !strings.Contains(view, "2/4") {
		t.Errorf("expected finished count in view, got:\n%s", view)
	}
}

func TestModel_BusClosedAndQuit(t *testing.T) {
	m, bus := newTestModel(t, 1)

	bus.Close()
	msg := waitForEvent(m.eventSub)()
	if _, ok := msg.(busClosedMsg); !ok {
		t.Fatalf("expected busClosedMsg, got %T", msg)
	}
	m = update(t, m, msg)
	if !m.done {
		t.Error("expected run marked done")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if m.Quitting() {
		t.Error("quitting after the run finished is not an abort")
	}
}

func TestModel_QuitDuringRun(t *testing.T) {
	m, _ := newTestModel(t, 1)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.Quitting() {
		t.Error("expected ctrl+c during the run to request an abort")
	}
}

func TestModel_FocusCycle(t *testing.T) {
	m, _ := newTestModel(t, 1)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedPane != PaneProgress {
		t.Errorf("expected progress pane focused, got %d", m.focusedPane)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.focusedPane != PaneTasks {
		t.Errorf("expected task pane focused, got %d", m.focusedPane)
	}
}
