package views

import (
	"fmt"
	"strings"
	"time"

	"scooby/models"
	"scooby/session"
)

// EventMsg carries a session event into the program.
type EventMsg struct {
	Event session.Event
}

// SubmitResultMsg reports the outcome of a scrape submission.
type SubmitResultMsg struct {
	Ack *models.ScrapeAck
	Err error
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

// formatPrice renders pesos in millions, e.g. $480M.
func formatPrice(v *float64) string {
	if v == nil || *v <= 0 {
		return "—"
	}
	if *v >= 1_000_000 {
		return fmt.Sprintf("$%sM", models.FormatNumber(float64(int64(*v/100_000))/10))
	}
	return fmt.Sprintf("$%.0fK", *v/1000)
}

func formatInt(v *int) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%d", *v)
}

func formatSurface(v *float64, unit *string) string {
	if v == nil {
		return "—"
	}
	u := models.Str(unit)
	if u == "" {
		u = "m²"
	}
	return fmt.Sprintf("%.0f%s", *v, u)
}

func formatDuration(secs *int) string {
	if secs == nil {
		return "—"
	}
	return (time.Duration(*secs) * time.Second).String()
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 40
	}
	var lines []string
	var line string
	for _, word := range strings.Fields(text) {
		if line != "" && len(line)+len(word)+1 > width {
			lines = append(lines, line)
			line = word
		} else {
			if line != "" {
				line += " "
			}
			line += word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// scrollWindow returns the visible [start, end) rows that keep selected on screen.
func scrollWindow(selected, total, visible int) (int, int) {
	start := 0
	if selected >= visible {
		start = selected - visible + 1
	}
	end := start + visible
	if end > total {
		end = total
	}
	return start, end
}
