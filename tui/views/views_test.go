package views

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scooby/models"
	"scooby/scrape"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestParseLogLine(t *testing.T) {
	l := parseLogLine("[2025-03-01T10:00:00] WARNING: page 3 empty")
	assert.Equal(t, logLine{Timestamp: "2025-03-01T10:00:00", Level: "WARNING", Message: "page 3 empty"}, l)

	l = parseLogLine("No recent scraping logs found.")
	assert.Equal(t, "", l.Level)
	assert.Equal(t, "No recent scraping logs found.", l.Message)
}

func TestLogsLevelFilter(t *testing.T) {
	l := Logs{lines: []logLine{
		parseLogLine("[t1] INFO: started"),
		parseLogLine("[t2] ERROR: boom"),
		parseLogLine("[t3] INFO: done"),
	}}
	assert.Len(t, l.filtered(), 3)

	m, _ := l.Update(key("l")) // DEBUG
	m, _ = m.Update(key("l"))  // INFO
	l = m.(Logs)
	got := l.filtered()
	require.Len(t, got, 2)
	assert.Equal(t, "done", got[1].Message)
}

func TestScrollWindowKeepsSelectionVisible(t *testing.T) {
	start, end := scrollWindow(0, 3, 10)
	assert.Equal(t, []int{0, 3}, []int{start, end})

	start, end = scrollWindow(12, 40, 10)
	assert.Equal(t, []int{3, 13}, []int{start, end})
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "—", formatPrice(nil))
	assert.Equal(t, "$480M", formatPrice(models.Float(480_000_000)))
	assert.Equal(t, "$1.5M", formatPrice(models.Float(1_500_000)))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
	assert.Equal(t, "ñandú", truncate("ñandú", 5))
	assert.Equal(t, []string{"one two", "three"}, wrapText("one two three", 8))
}

func TestScraperFormKeys(t *testing.T) {
	v := NewScraper(nil)
	assert.False(t, v.Form().CanSubmit(), "city and region are empty")

	// Edit the city field.
	m, _ := v.Update(key("enter"))
	v = m.(Scraper)
	require.True(t, v.Editing())
	for _, r := range "Cali" {
		m, _ = v.Update(key(string(r)))
		v = m.(Scraper)
	}
	m, _ = v.Update(key("tab"))
	v = m.(Scraper)
	assert.False(t, v.Editing())
	assert.Equal(t, "Cali", v.Form().City)

	// Region.
	m, _ = v.Update(key("enter"))
	v = m.(Scraper)
	for _, r := range "valle" {
		m, _ = v.Update(key(string(r)))
		v = m.(Scraper)
	}
	m, _ = v.Update(key("esc"))
	v = m.(Scraper)
	assert.True(t, v.Form().CanSubmit())

	// Move to the type checkboxes and select apartamentos.
	for range 2 {
		m, _ = v.Update(key("j"))
		v = m.(Scraper)
	}
	m, _ = v.Update(key("l"))
	v = m.(Scraper)
	m, _ = v.Update(key(" "))
	v = m.(Scraper)
	assert.Equal(t, []string{"casas", "apartamentos"}, v.Form().PropertyTypes)
}

func TestScraperSubmitDisabledWithoutLocation(t *testing.T) {
	v := NewScraper(nil)
	m, cmd := v.Update(key("s"))
	assert.Nil(t, cmd)
	assert.False(t, m.(Scraper).submitting)
}

func TestScraperFailureKeepsForm(t *testing.T) {
	v := NewScraper(nil)
	v.form.City = "cali"
	v.form.Region = "valle"
	v.submitting = true
	before := v.Form()

	m, _ := v.Update(SubmitResultMsg{Err: &scrape.SubmissionError{Err: errors.New("503")}})
	v = m.(Scraper)
	assert.False(t, v.submitting)
	assert.Equal(t, before, v.Form())
	assert.Contains(t, v.View(), "failed to start scraper")
}
