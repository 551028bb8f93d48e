package views

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scooby/models"
	"scooby/scrape"
	"scooby/session"
	"scooby/tui/styles"
)

const submitTimeout = 30 * time.Second

// Focus order of the scraper form: the three text inputs, the type
// checkboxes, then the submit button.
const (
	focusCity = iota
	focusRegion
	focusPages
	focusTypes
	focusSubmit
	focusCount
)

// Scraper is the scrape job form.
type Scraper struct {
	s             *session.Session
	width, height int

	form       scrape.Form
	inputs     [3]textinput.Model
	focus      int
	typeCursor int
	editing    bool

	submitting bool
	err        error
	ack        *models.ScrapeAck
}

func NewScraper(s *session.Session) Scraper {
	form := scrape.NewForm()
	var inputs [3]textinput.Model
	placeholders := [3]string{"manizales", "caldas", strconv.Itoa(scrape.DefaultMaxPages)}
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 48
		ti.Width = 24
		inputs[i] = ti
	}
	inputs[focusPages].CharLimit = 3
	inputs[focusPages].SetValue(strconv.Itoa(form.MaxPages))
	return Scraper{s: s, form: form, inputs: inputs}
}

func (v Scraper) Init() tea.Cmd { return nil }

func (v Scraper) SetSize(w, h int) Scraper {
	v.width = w
	v.height = h
	return v
}

// Editing reports whether a text input has the keyboard.
func (v Scraper) Editing() bool { return v.editing }

// Form returns the current form values.
func (v Scraper) Form() scrape.Form { return v.form }

func (v Scraper) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SubmitResultMsg:
		v.submitting = false
		v.err = msg.Err
		if msg.Err == nil {
			v.ack = msg.Ack
		}
		return v, nil

	case tea.KeyMsg:
		if v.editing {
			return v.updateInput(msg)
		}
		switch msg.String() {
		case "tab", "down", "j":
			v.focus = (v.focus + 1) % focusCount
		case "shift+tab", "up", "k":
			v.focus = (v.focus + focusCount - 1) % focusCount
		case "left", "h":
			if v.focus == focusTypes && v.typeCursor > 0 {
				v.typeCursor--
			}
		case "right", "l":
			if v.focus == focusTypes && v.typeCursor < len(models.PropertyTypeOptions)-1 {
				v.typeCursor++
			}
		case " ", "x":
			if v.focus == focusTypes {
				v.form.Toggle(models.PropertyTypeOptions[v.typeCursor])
			}
		case "enter":
			switch v.focus {
			case focusCity, focusRegion, focusPages:
				v.editing = true
				cmd := v.inputs[v.focus].Focus()
				return v, cmd
			case focusTypes:
				v.form.Toggle(models.PropertyTypeOptions[v.typeCursor])
			case focusSubmit:
				return v.submit()
			}
		case "s":
			return v.submit()
		}
	}
	return v, nil
}

func (v Scraper) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc", "tab":
		v.editing = false
		v.inputs[v.focus].Blur()
		if msg.String() == "tab" {
			v.focus = (v.focus + 1) % focusCount
		}
		return v, nil
	}

	var cmd tea.Cmd
	v.inputs[v.focus], cmd = v.inputs[v.focus].Update(msg)
	value := v.inputs[v.focus].Value()
	switch v.focus {
	case focusCity:
		v.form.City = value
	case focusRegion:
		v.form.Region = value
	case focusPages:
		v.form.SetMaxPages(value)
	}
	return v, cmd
}

func (v Scraper) submit() (tea.Model, tea.Cmd) {
	if v.submitting || !v.form.CanSubmit() {
		return v, nil
	}
	v.submitting = true
	v.err = nil
	s := v.s
	req := v.form.Request()
	return v, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		ack, err := s.Submit(ctx, req)
		return SubmitResultMsg{Ack: ack, Err: err}
	}
}

func (v Scraper) View() string {
	label := func(i int, text string) string {
		if v.focus == i {
			return styles.FieldFocused.Render(text)
		}
		return styles.FieldLabel.Render(text)
	}

	rows := []string{
		styles.Title.Render("New Scrape Job"),
		"",
		label(focusCity, "City") + v.inputs[focusCity].View(),
		label(focusRegion, "Region") + v.inputs[focusRegion].View(),
		label(focusPages, "Max pages") + v.inputs[focusPages].View() +
			styles.Muted.Render(fmt.Sprintf("  (%d-%d)", scrape.MinPages, scrape.MaxPages)),
		label(focusTypes, "Property types") + v.renderTypes(),
		"",
		v.renderButton(),
	}

	if v.err != nil {
		rows = append(rows, "", styles.StatusError.Render("✗ "+v.err.Error()))
	} else if _, err := scrape.Normalize(v.form.Request()); err != nil {
		rows = append(rows, "", styles.Muted.Render(err.Error()))
	}
	if v.ack != nil {
		line := v.ack.Message
		if v.ack.TaskID != "" {
			line += " (" + v.ack.TaskID + ")"
		}
		rows = append(rows, "", styles.StatusSuccess.Render("✓ "+line))
	}

	help := "[tab] Next  [enter] Edit/Toggle  [space] Toggle type  [s] Submit"
	if v.editing {
		help = "[enter/esc] Done  [tab] Next field"
	}
	rows = append(rows, "", styles.Muted.Render(help))

	return styles.CardBorder.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (v Scraper) renderTypes() string {
	var out string
	for i, opt := range models.PropertyTypeOptions {
		box := "[ ]"
		if v.form.Selected(opt) {
			box = "[x]"
		}
		cell := box + " " + opt
		if v.focus == focusTypes && i == v.typeCursor {
			cell = styles.TableSelected.Render(cell)
		}
		out += cell + "  "
	}
	return out
}

func (v Scraper) renderButton() string {
	text := "Start scrape"
	switch {
	case v.submitting:
		return styles.Button.Render("Submitting...")
	case !v.form.CanSubmit():
		return styles.Button.Render(text)
	case v.focus == focusSubmit:
		return styles.ButtonActive.Render("▶ " + text)
	}
	return styles.ButtonActive.Render(text)
}
