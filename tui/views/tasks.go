package views

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scooby/models"
	"scooby/poller"
	"scooby/session"
	"scooby/tui/styles"
)

type Tasks struct {
	s             *session.Session
	width, height int

	snap        poller.Snapshot
	hasSnap     bool
	loading     bool
	err         error
	message     string
	selectedRow int
}

func NewTasks(s *session.Session) Tasks {
	return Tasks{s: s}
}

func (t Tasks) Init() tea.Cmd { return nil }

// Refresh fetches the task list now instead of waiting for the next tick.
func (t Tasks) Refresh() tea.Cmd {
	p := t.s.Tasks
	return func() tea.Msg {
		// Failures are reported by the poller and read back via Err.
		_, _ = p.Refresh(context.Background())
		return EventMsg{Event: session.EventTasks}
	}
}

func (t Tasks) SetSize(w, h int) Tasks {
	t.width = w
	t.height = h
	return t
}

func (t Tasks) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		if msg.Event != session.EventTasks && msg.Event != session.EventView {
			return t, nil
		}
		t.snap, t.hasSnap = t.s.Tasks.Snapshot()
		t.loading = t.s.Tasks.Loading()
		t.err = t.s.Tasks.Err()
		t.message = t.s.Message()
		if t.selectedRow >= len(t.snap.Tasks) {
			t.selectedRow = max(len(t.snap.Tasks)-1, 0)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if t.selectedRow > 0 {
				t.selectedRow--
			}
		case "down", "j":
			if t.selectedRow < len(t.snap.Tasks)-1 {
				t.selectedRow++
			}
		case "r":
			return t, t.Refresh()
		}
	}
	return t, nil
}

func (t Tasks) View() string {
	header := styles.Title.Render("Scrape Tasks")
	switch {
	case t.loading:
		header += styles.StatusPending.Render(" ◐")
	case t.hasSnap:
		header += styles.Muted.Render(" updated " + relativeTime(t.snap.FetchedAt))
	}

	parts := []string{header}
	if t.message != "" {
		parts = append(parts, styles.Notification.Render(t.message))
	}
	if t.err != nil {
		parts = append(parts, styles.StatusError.Render("✗ "+t.err.Error()))
	}
	parts = append(parts, "", t.renderTable())
	if t.selectedRow < len(t.snap.Tasks) {
		parts = append(parts, "", t.renderDetail(t.snap.Tasks[t.selectedRow]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (t Tasks) visibleRows() int {
	if t.height <= 0 {
		return 12
	}
	return max(t.height-16, 3)
}

func (t Tasks) renderTable() string {
	tasks := t.snap.Tasks
	if len(tasks) == 0 {
		if !t.hasSnap {
			return styles.Muted.Render("Waiting for first update...")
		}
		return styles.Muted.Render("No scrape tasks")
	}

	var b strings.Builder
	b.WriteString(styles.TableHeader.Render(fmt.Sprintf("%-10s %-14s %-12s %-14s %-10s %6s %8s",
		"ID", "City", "Region", "Type", "Status", "Found", "Time")))
	b.WriteString("\n")

	start, end := scrollWindow(t.selectedRow, len(tasks), t.visibleRows())
	for i := start; i < end; i++ {
		task := tasks[i]
		status := fmt.Sprintf("%-10s", task.Status)
		row := fmt.Sprintf("%-10s %-14s %-12s %-14s %s %6s %8s",
			truncate(task.ID, 10),
			truncate(task.City, 14),
			truncate(task.Region, 12),
			truncate(task.PropertyType, 14),
			styles.TaskStatus(string(task.Status)).Render(status),
			formatInt(task.PropertiesFound),
			formatDuration(task.DurationSeconds),
		)
		if i == t.selectedRow {
			row = styles.TableSelected.Render("▸") + row
		} else {
			row = " " + row
		}
		b.WriteString(row + "\n")
	}
	b.WriteString(styles.Muted.Render(fmt.Sprintf("  %d of %d tasks", len(tasks), t.snap.Total)))
	return b.String()
}

func (t Tasks) renderDetail(task models.ScrapeTask) string {
	lines := []string{
		styles.StatValue.Render(task.ID),
		styles.StatLabel.Render(fmt.Sprintf("%s, %s · %s · %d pages", task.City, task.Region, task.PropertyType, task.MaxPages)),
		styles.StatLabel.Render("Started " + relativeTime(task.StartTime.Time)),
	}
	if task.EndTime != nil {
		lines = append(lines, styles.StatLabel.Render("Ended "+relativeTime(task.EndTime.Time)))
	}
	if task.Error != nil {
		width := max(t.width-6, 20)
		for _, l := range wrapText(*task.Error, width) {
			lines = append(lines, styles.StatusError.Render(l))
		}
	}
	return styles.CardBorder.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
