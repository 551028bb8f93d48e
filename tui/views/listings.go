package views

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scooby/filters"
	"scooby/models"
	"scooby/querycache"
	"scooby/session"
	"scooby/tui/styles"
)

var fieldLabels = map[filters.Field]string{
	filters.FieldCity:         "City",
	filters.FieldRegion:       "Region",
	filters.FieldPropertyType: "Type",
	filters.FieldMinPrice:     "Min price",
	filters.FieldMaxPrice:     "Max price",
	filters.FieldMinRooms:     "Min rooms",
	filters.FieldMinBathrooms: "Min baths",
}

// Listings shows the filter form, the current page of properties and the
// per-city statistics.
type Listings struct {
	s             *session.Session
	width, height int

	entry  querycache.Entry[[]models.PropertyRecord]
	cities querycache.Entry[[]models.CityCount]
	prices querycache.Entry[[]models.CityAvgPrice]

	selectedRow int
	editing     bool
	focus       int
	inputs      []textinput.Model
}

func NewListings(s *session.Session) Listings {
	inputs := make([]textinput.Model, len(filters.Fields))
	for i, f := range filters.Fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = "any"
		ti.CharLimit = 64
		ti.Width = 18
		ti.SetValue(s.Filters.DraftValue(f))
		inputs[i] = ti
	}
	return Listings{s: s, inputs: inputs}
}

func (l Listings) Init() tea.Cmd {
	return l.Refresh()
}

// Refresh starts watching the listing and statistics and reports back once
// the cached state can be read.
func (l Listings) Refresh() tea.Cmd {
	s := l.s
	return func() tea.Msg {
		s.LoadListing()
		s.LoadStats()
		return EventMsg{Event: session.EventListings}
	}
}

func (l Listings) SetSize(w, h int) Listings {
	l.width = w
	l.height = h
	return l
}

// Editing reports whether key presses belong to the filter form.
func (l Listings) Editing() bool { return l.editing }

// SelectedURL returns the listing URL under the cursor.
func (l Listings) SelectedURL() string {
	if l.selectedRow < len(l.entry.Data) {
		return l.entry.Data[l.selectedRow].URL
	}
	return ""
}

func (l Listings) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		switch msg.Event {
		case session.EventListings, session.EventStats:
			l.entry = l.s.Listing()
			l.cities, l.prices = l.s.Stats()
			if l.selectedRow >= len(l.entry.Data) {
				l.selectedRow = 0
			}
		}

	case tea.KeyMsg:
		if l.editing {
			return l.updateForm(msg)
		}
		switch msg.String() {
		case "up", "k":
			if l.selectedRow > 0 {
				l.selectedRow--
			}
		case "down", "j":
			if l.selectedRow < len(l.entry.Data)-1 {
				l.selectedRow++
			}
		case "home", "g":
			l.selectedRow = 0
		case "end", "G":
			if n := len(l.entry.Data); n > 0 {
				l.selectedRow = n - 1
			}
		case "[":
			l.s.PrevPage()
			l.selectedRow = 0
			return l, l.pull()
		case "]":
			l.s.NextPage()
			l.selectedRow = 0
			return l, l.pull()
		case "/", "f":
			l.editing = true
			cmd := l.setFocus(0)
			return l, cmd
		case "x":
			l.s.ClearFilters()
			for i := range l.inputs {
				l.inputs[i].SetValue("")
			}
			l.selectedRow = 0
			return l, l.pull()
		case "r":
			l.s.InvalidateResults()
			return l, l.pull()
		}
	}
	return l, nil
}

func (l Listings) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		l.editing = false
		l.inputs[l.focus].Blur()
		return l, nil
	case "enter":
		l.editing = false
		l.inputs[l.focus].Blur()
		l.s.ApplyFilters()
		l.selectedRow = 0
		return l, l.pull()
	case "tab", "down":
		cmd := l.setFocus((l.focus + 1) % len(l.inputs))
		return l, cmd
	case "shift+tab", "up":
		cmd := l.setFocus((l.focus + len(l.inputs) - 1) % len(l.inputs))
		return l, cmd
	}

	var cmd tea.Cmd
	l.inputs[l.focus], cmd = l.inputs[l.focus].Update(msg)
	// Only the draft changes while typing; the URL waits for enter.
	_ = l.s.Filters.HandleChange(filters.Fields[l.focus], l.inputs[l.focus].Value())
	return l, cmd
}

func (l *Listings) setFocus(i int) tea.Cmd {
	l.inputs[l.focus].Blur()
	l.focus = i
	return l.inputs[i].Focus()
}

func (l Listings) pull() tea.Cmd {
	return func() tea.Msg { return EventMsg{Event: session.EventListings} }
}

func (l Listings) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		l.renderHeader(),
		l.renderForm(),
		"",
		l.renderTable(),
		"",
		l.renderStats(),
	)
}

func (l Listings) renderHeader() string {
	status := ""
	switch {
	case l.entry.Status == querycache.StatusLoading && l.entry.Placeholder:
		status = styles.StatusPending.Render("◐ loading (showing previous results)")
	case l.entry.Status == querycache.StatusLoading:
		status = styles.StatusPending.Render("◐ loading")
	case l.entry.Status == querycache.StatusError:
		status = styles.StatusError.Render("✗ " + l.entry.Err.Error())
	case l.entry.Status == querycache.StatusStale:
		status = styles.Muted.Render("stale")
	case !l.entry.FetchedAt.IsZero():
		status = styles.Muted.Render("updated " + relativeTime(l.entry.FetchedAt))
	}

	filterInfo := "no filters"
	if n := l.s.Filters.ActiveFilterCount(); n > 0 {
		filterInfo = fmt.Sprintf("%d filters", n)
	}
	if l.s.Filters.State() == filters.StateEditing {
		filterInfo += " (unapplied)"
	}

	return styles.Title.Render("Properties") +
		styles.StatLabel.Render(fmt.Sprintf("  Page %d  %s  ", l.s.Page()+1, filterInfo)) +
		status
}

func (l Listings) renderForm() string {
	var cells []string
	for i, f := range filters.Fields {
		label := styles.FieldLabel
		if l.editing && i == l.focus {
			label = styles.FieldFocused
		}
		cells = append(cells, label.Render(fieldLabels[f])+l.inputs[i].View())
	}

	left := lipgloss.JoinVertical(lipgloss.Left, cells[:4]...)
	right := lipgloss.JoinVertical(lipgloss.Left, cells[4:]...)
	help := "[/] Edit  [enter] Apply  [x] Clear  [[ ]] Page  [r] Reload"
	if l.editing {
		help = "[tab] Next field  [enter] Apply  [esc] Done"
	}
	return styles.CardBorder.Render(
		lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right) + "\n" + styles.Muted.Render(help),
	)
}

func (l Listings) visibleRows() int {
	rows := 15
	if l.height > 0 {
		rows = l.height - 22
		if rows < 5 {
			rows = 5
		}
	}
	return rows
}

func (l Listings) renderTable() string {
	props := l.entry.Data
	if len(props) == 0 {
		if l.entry.Status == querycache.StatusLoading {
			return styles.Muted.Render("Loading properties...")
		}
		return styles.Muted.Render("No properties match")
	}

	header := fmt.Sprintf("%-34s %-14s %10s %4s %4s %8s %-14s",
		"Title", "City", "Price", "Bed", "Bath", "Area", "Type")
	rows := styles.TableHeader.Render(header) + "\n"

	start, end := scrollWindow(l.selectedRow, len(props), l.visibleRows())
	for i := start; i < end; i++ {
		p := props[i]
		title := models.Str(p.Title)
		if title == "" {
			title = p.URL
		}
		row := fmt.Sprintf("%-34s %-14s %10s %4s %4s %8s %-14s",
			truncate(title, 34),
			truncate(models.Str(p.City), 14),
			formatPrice(p.Price),
			formatInt(p.Rooms),
			formatInt(p.Bathrooms),
			formatSurface(p.Surface, p.SurfaceUnit),
			truncate(models.Str(p.PropertyType), 14),
		)
		if i == l.selectedRow {
			rows += styles.TableSelected.Render(row) + "\n"
		} else {
			rows += row + "\n"
		}
	}
	if len(props) > l.visibleRows() {
		rows += styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(props)))
	}
	if i := l.selectedRow; i < len(props) {
		rows += "\n" + styles.Muted.Render(truncate(props[i].URL, max(l.width-2, 20)))
	}
	return rows
}

func (l Listings) renderStats() string {
	if len(l.cities.Data) == 0 {
		if l.cities.Err != nil {
			return styles.StatusError.Render("Stats unavailable: " + l.cities.Err.Error())
		}
		return styles.Muted.Render("Loading stats...")
	}

	avg := make(map[string]float64, len(l.prices.Data))
	for _, p := range l.prices.Data {
		avg[p.City] = p.AvgPrice
	}

	var cards []string
	for i, c := range l.cities.Data {
		if i == 6 {
			break
		}
		price := "—"
		if v, ok := avg[c.City]; ok {
			price = formatPrice(&v)
		}
		content := lipgloss.JoinVertical(lipgloss.Left,
			styles.StatValue.Render(truncate(c.City, 16)),
			styles.StatLabel.Render(fmt.Sprintf("Props: %d", c.Count)),
			styles.StatLabel.Render("Avg: "+price),
		)
		cards = append(cards, styles.StatsCardBorder.Width(20).Render(content))
	}
	return styles.Title.Render("By City") + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}
