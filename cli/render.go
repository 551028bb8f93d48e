package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"scooby/models"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderProperties(w io.Writer, props []models.PropertyRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Title", "Price", "Rooms", "Baths", "Surface", "City", "Type", "URL"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 40},
		{Number: 3, Align: text.AlignRight},
		{Number: 9, WidthMax: 60},
	})
	for _, p := range props {
		t.AppendRow(table.Row{
			p.ID,
			models.Str(p.Title),
			formatPrice(p.Price),
			formatInt(p.Rooms),
			formatInt(p.Bathrooms),
			formatSurface(p.Surface, p.SurfaceUnit),
			models.Str(p.City),
			models.Str(p.PropertyType),
			p.URL,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d properties", len(props))})
	t.Render()
}

func renderCityStats(w io.Writer, counts []models.CityCount, prices []models.CityAvgPrice) {
	avg := make(map[string]float64, len(prices))
	for _, p := range prices {
		avg[p.City] = p.AvgPrice
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"City", "Properties", "Avg Price"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	seen := make(map[string]bool, len(counts))
	for _, c := range counts {
		seen[c.City] = true
		price := "-"
		if v, ok := avg[c.City]; ok {
			price = formatPrice(&v)
		}
		t.AppendRow(table.Row{c.City, c.Count, price})
	}
	for _, p := range prices {
		if !seen[p.City] {
			v := p.AvgPrice
			t.AppendRow(table.Row{p.City, "-", formatPrice(&v)})
		}
	}
	t.Render()
}

func renderTasks(w io.Writer, tasks []models.ScrapeTask, total int) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Task", "Location", "Type", "Pages", "Status", "Found", "Started", "Duration", "Error"})
	for _, task := range tasks {
		t.AppendRow(table.Row{
			shortID(task.ID),
			task.City + ", " + task.Region,
			task.PropertyType,
			task.MaxPages,
			task.Status,
			formatInt(task.PropertiesFound),
			task.StartTime.Local().Format("2006-01-02 15:04"),
			formatDuration(task.DurationSeconds),
			models.Str(task.Error),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d of %d tasks", len(tasks), total)})
	t.Render()
}

func renderLogs(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, strings.TrimRight(line, "\n"))
	}
}

func formatPrice(v *float64) string {
	if v == nil {
		return "-"
	}
	s := fmt.Sprintf("%.0f", *v)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 && s[i-1] != '-' {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "$" + b.String()
}

func formatInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func formatSurface(v *float64, unit *string) string {
	if v == nil {
		return "-"
	}
	u := models.Str(unit)
	if u == "" {
		u = "m²"
	}
	return models.FormatNumber(*v) + " " + u
}

func formatDuration(secs *int) string {
	if secs == nil {
		return "-"
	}
	return fmt.Sprintf("%dm%02ds", *secs/60, *secs%60)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
