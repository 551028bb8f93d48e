package views

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scooby/session"
	"scooby/tui/styles"
)

var logLevels = []string{"ALL", "DEBUG", "INFO", "WARNING", "ERROR"}

// logLine is one "[timestamp] LEVEL: message" entry from the scrape log
// endpoint. Lines that do not match keep everything in Message.
type logLine struct {
	Timestamp string
	Level     string
	Message   string
}

var logLinePattern = regexp.MustCompile(`^\[([^\]]*)\]\s+([A-Z]+):\s?(.*)$`)

func parseLogLine(raw string) logLine {
	m := logLinePattern.FindStringSubmatch(raw)
	if m == nil {
		return logLine{Message: raw}
	}
	return logLine{Timestamp: m[1], Level: m[2], Message: m[3]}
}

type Logs struct {
	s             *session.Session
	width, height int

	lines        []logLine
	levelIndex   int
	scrollOffset int
	err          error
	loading      bool
}

func NewLogs(s *session.Session) Logs {
	return Logs{s: s}
}

func (l Logs) Init() tea.Cmd { return nil }

func (l Logs) Refresh() tea.Cmd {
	p := l.s.Logs
	return func() tea.Msg {
		_, _ = p.Refresh(context.Background())
		return EventMsg{Event: session.EventLogs}
	}
}

func (l Logs) SetSize(w, h int) Logs {
	l.width = w
	l.height = h
	return l
}

func (l Logs) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		if msg.Event != session.EventLogs && msg.Event != session.EventView {
			return l, nil
		}
		snap, _ := l.s.Logs.Snapshot()
		l.lines = l.lines[:0:0]
		for _, raw := range snap.Logs {
			l.lines = append(l.lines, parseLogLine(raw))
		}
		l.err = l.s.Logs.Err()
		l.loading = l.s.Logs.Loading()
		l.scrollOffset = min(l.scrollOffset, l.maxScroll())

	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h":
			if l.levelIndex > 0 {
				l.levelIndex--
				l.scrollOffset = 0
			}
		case "right", "l":
			if l.levelIndex < len(logLevels)-1 {
				l.levelIndex++
				l.scrollOffset = 0
			}
		case "up", "k":
			if l.scrollOffset > 0 {
				l.scrollOffset--
			}
		case "down", "j":
			if l.scrollOffset < l.maxScroll() {
				l.scrollOffset++
			}
		case "g":
			l.scrollOffset = 0
		case "G":
			l.scrollOffset = l.maxScroll()
		case "r":
			return l, l.Refresh()
		}
	}
	return l, nil
}

func (l Logs) filtered() []logLine {
	level := logLevels[l.levelIndex]
	if level == "ALL" {
		return l.lines
	}
	var out []logLine
	for _, line := range l.lines {
		if line.Level == level {
			out = append(out, line)
		}
	}
	return out
}

func (l Logs) visibleLines() int {
	if l.height <= 0 {
		return 15
	}
	return max(l.height-6, 1)
}

func (l Logs) maxScroll() int {
	return max(len(l.filtered())-l.visibleLines(), 0)
}

func (l Logs) View() string {
	title := styles.Title.Render("Scrape Logs")
	if l.loading {
		title += styles.StatusPending.Render(" ◐")
	}
	parts := []string{title, l.renderFilter()}
	if l.err != nil {
		parts = append(parts, styles.StatusError.Render("✗ "+l.err.Error()))
	}
	parts = append(parts, "", l.renderLogs())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (l Logs) renderFilter() string {
	var parts []string
	for i, level := range logLevels {
		if i == l.levelIndex {
			parts = append(parts, styles.TabActive.Render("["+level+"]"))
		} else {
			parts = append(parts, styles.TabInactive.Render(level))
		}
	}
	return "Filter: " + strings.Join(parts, " ") + "  (←/→ to change)"
}

func (l Logs) renderLogs() string {
	lines := l.filtered()
	if len(lines) == 0 {
		return styles.Muted.Render("No logs")
	}

	start := min(l.scrollOffset, len(lines))
	end := min(start+l.visibleLines(), len(lines))

	var out []string
	for _, line := range lines[start:end] {
		out = append(out, l.formatLine(line))
	}
	header := styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(lines)))
	return header + "\n" + strings.Join(out, "\n")
}

func (l Logs) formatLine(line logLine) string {
	var levelStyle lipgloss.Style
	switch line.Level {
	case "DEBUG":
		levelStyle = styles.Muted
	case "INFO":
		levelStyle = styles.StatusSuccess
	case "WARNING":
		levelStyle = styles.StatusPending
	case "ERROR", "CRITICAL":
		levelStyle = styles.StatusError
	default:
		levelStyle = lipgloss.NewStyle()
	}

	msg := line.Message
	if maxLen := l.width - 36; maxLen > 0 {
		msg = truncate(msg, maxLen)
	}
	if line.Level == "" {
		return msg
	}
	return fmt.Sprintf("%s %s %s",
		styles.Muted.Render(truncate(line.Timestamp, 26)),
		levelStyle.Render(fmt.Sprintf("%-7s", line.Level)),
		msg,
	)
}
