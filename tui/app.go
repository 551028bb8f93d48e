// Package tui is the interactive property browser.
package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scooby/session"
	"scooby/tui/styles"
	"scooby/tui/views"
)

var tabNames = map[session.View]string{
	session.ViewListings: "Listings",
	session.ViewScraper:  "Scraper",
	session.ViewTasks:    "Tasks",
	session.ViewLogs:     "Logs",
}

type model struct {
	s      *session.Session
	events <-chan session.Event

	active        session.View
	width, height int
	notification  string
	notifyUntil   time.Time

	listings views.Listings
	scraper  views.Scraper
	tasks    views.Tasks
	logs     views.Logs
}

type tickMsg time.Time

// sessionEventMsg is an event read from the session channel.
type sessionEventMsg session.Event

func newModel(s *session.Session, events <-chan session.Event) model {
	return model{
		s:        s,
		events:   events,
		active:   s.View(),
		listings: views.NewListings(s),
		scraper:  views.NewScraper(s),
		tasks:    views.NewTasks(s),
		logs:     views.NewLogs(s),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.listings.Init(),
		waitForEvent(m.events),
		tickCmd(),
	)
}

// waitForEvent blocks until the session reports a change.
func waitForEvent(ch <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return sessionEventMsg(e)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) editing() bool {
	switch m.active {
	case session.ViewListings:
		return m.listings.Editing()
	case session.ViewScraper:
		return m.scraper.Editing()
	}
	return false
}

// switchTo activates v before the next message is handled, so view
// switches reach the session in key order.
func (m model) switchTo(v session.View) model {
	m.s.SetView(v)
	m.active = m.s.View()
	return m
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if e, ok := msg.(sessionEventMsg); ok {
		cmds = append(cmds, waitForEvent(m.events))
		msg = views.EventMsg{Event: session.Event(e)}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if !m.editing() {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1", "2", "3", "4":
				v := session.Views[int(msg.String()[0]-'1')]
				return m.switchTo(v), nil
			case "tab":
				if m.active != session.ViewScraper {
					v := session.Views[(m.indexOf(m.active)+1)%len(session.Views)]
					return m.switchTo(v), nil
				}
			case "shift+tab":
				if m.active != session.ViewScraper {
					n := len(session.Views)
					v := session.Views[(m.indexOf(m.active)+n-1)%n]
					return m.switchTo(v), nil
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.listings = m.listings.SetSize(msg.Width, msg.Height-4)
		m.scraper = m.scraper.SetSize(msg.Width, msg.Height-4)
		m.tasks = m.tasks.SetSize(msg.Width, msg.Height-4)
		m.logs = m.logs.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case views.EventMsg:
		if msg.Event == session.EventView {
			m.active = m.s.View()
		}

	case views.SubmitResultMsg:
		if msg.Err == nil && msg.Ack != nil {
			m.notification = msg.Ack.Message
			m.notifyUntil = time.Now().Add(3 * time.Second)
			m.active = m.s.View()
		}

	case tickMsg:
		cmds = append(cmds, tickCmd())
	}

	// Keys go to the active view only, everything else to all of them.
	switch msg.(type) {
	case tea.KeyMsg:
		switch m.active {
		case session.ViewListings:
			v, cmd := m.listings.Update(msg)
			m.listings = v.(views.Listings)
			cmds = append(cmds, cmd)
		case session.ViewScraper:
			v, cmd := m.scraper.Update(msg)
			m.scraper = v.(views.Scraper)
			cmds = append(cmds, cmd)
		case session.ViewTasks:
			v, cmd := m.tasks.Update(msg)
			m.tasks = v.(views.Tasks)
			cmds = append(cmds, cmd)
		case session.ViewLogs:
			v, cmd := m.logs.Update(msg)
			m.logs = v.(views.Logs)
			cmds = append(cmds, cmd)
		}
	default:
		l, cmd1 := m.listings.Update(msg)
		m.listings = l.(views.Listings)
		s, cmd2 := m.scraper.Update(msg)
		m.scraper = s.(views.Scraper)
		t, cmd3 := m.tasks.Update(msg)
		m.tasks = t.(views.Tasks)
		g, cmd4 := m.logs.Update(msg)
		m.logs = g.(views.Logs)
		cmds = append(cmds, cmd1, cmd2, cmd3, cmd4)
	}

	return m, tea.Batch(cmds...)
}

func (m model) indexOf(v session.View) int {
	for i, view := range session.Views {
		if view == v {
			return i
		}
	}
	return 0
}

func (m model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		m.renderContent(),
		m.renderStatusBar(),
	)
}

func (m model) renderTabs() string {
	var rendered []string
	for i, v := range session.Views {
		name := string(rune('1'+i)) + " " + tabNames[v]
		if v == m.active {
			rendered = append(rendered, styles.TabActive.Render(name))
		} else {
			rendered = append(rendered, styles.TabInactive.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...) + "\n"
}

func (m model) renderContent() string {
	switch m.active {
	case session.ViewListings:
		return m.listings.View()
	case session.ViewScraper:
		return m.scraper.View()
	case session.ViewTasks:
		return m.tasks.View()
	case session.ViewLogs:
		return m.logs.View()
	}
	return ""
}

func (m model) renderStatusBar() string {
	left := "1-4 Views  tab Next  r Refresh  q Quit"
	right := ""
	if time.Now().Before(m.notifyUntil) {
		right = styles.Notification.Render(m.notification)
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 0)
	return styles.StatusBar.Render(left) + lipgloss.NewStyle().Width(gap).Render("") + right
}

// Run opens a session with open and drives it until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, open func(session.Options) *session.Session) error {
	ch := make(chan session.Event, 64)
	s := open(session.Options{
		Notify: func(e session.Event) {
			select {
			case ch <- e:
			default:
			}
		},
	})
	defer s.Close()

	p := tea.NewProgram(
		newModel(s, ch),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
