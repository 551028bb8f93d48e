// Package export writes listing and task results as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jszwec/csvutil"

	"scooby/models"
)

// PropertyRow is the flat CSV shape of a PropertyRecord.
type PropertyRow struct {
	ID           int64    `csv:"id"`
	URL          string   `csv:"url"`
	Title        *string  `csv:"title,omitempty"`
	Price        *float64 `csv:"price,omitempty"`
	Rooms        *int     `csv:"rooms,omitempty"`
	Bathrooms    *int     `csv:"bathrooms,omitempty"`
	Surface      *float64 `csv:"surface,omitempty"`
	SurfaceUnit  *string  `csv:"surface_unit,omitempty"`
	City         *string  `csv:"city,omitempty"`
	Region       *string  `csv:"region,omitempty"`
	PropertyType *string  `csv:"property_type,omitempty"`
	Images       string   `csv:"image_urls"`
	CreatedAt    string   `csv:"created_at"`
}

// TaskRow is the flat CSV shape of a ScrapeTask.
type TaskRow struct {
	ID              string  `csv:"id"`
	City            string  `csv:"city"`
	Region          string  `csv:"region"`
	PropertyType    string  `csv:"property_type"`
	MaxPages        int     `csv:"max_pages"`
	Status          string  `csv:"status"`
	PropertiesFound *int    `csv:"properties_found,omitempty"`
	Error           *string `csv:"error,omitempty"`
	StartTime       string  `csv:"start_time"`
	DurationSeconds *int    `csv:"duration_seconds,omitempty"`
}

// imageSep joins image URLs inside one cell.
const imageSep = "|"

func PropertyRows(props []models.PropertyRecord) []PropertyRow {
	rows := make([]PropertyRow, 0, len(props))
	for _, p := range props {
		rows = append(rows, PropertyRow{
			ID:           p.ID,
			URL:          p.URL,
			Title:        p.Title,
			Price:        p.Price,
			Rooms:        p.Rooms,
			Bathrooms:    p.Bathrooms,
			Surface:      p.Surface,
			SurfaceUnit:  p.SurfaceUnit,
			City:         p.City,
			Region:       p.Region,
			PropertyType: p.PropertyType,
			Images:       strings.Join(p.ImageURLs, imageSep),
			CreatedAt:    formatTime(p.CreatedAt),
		})
	}
	return rows
}

func TaskRows(tasks []models.ScrapeTask) []TaskRow {
	rows := make([]TaskRow, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, TaskRow{
			ID:              t.ID,
			City:            t.City,
			Region:          t.Region,
			PropertyType:    t.PropertyType,
			MaxPages:        t.MaxPages,
			Status:          string(t.Status),
			PropertiesFound: t.PropertiesFound,
			Error:           t.Error,
			StartTime:       formatTime(t.StartTime),
			DurationSeconds: t.DurationSeconds,
		})
	}
	return rows
}

// WriteProperties writes props with a header row. An empty result still
// gets the header.
func WriteProperties(w io.Writer, props []models.PropertyRecord) error {
	return write[PropertyRow](w, PropertyRows(props))
}

func WriteTasks(w io.Writer, tasks []models.ScrapeTask) error {
	return write[TaskRow](w, TaskRows(tasks))
}

// ReadProperties decodes rows written by WriteProperties.
func ReadProperties(r io.Reader) ([]PropertyRow, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder: %w", err)
	}
	var rows []PropertyRow
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode property CSV: %w", err)
	}
	return rows, nil
}

func write[T any](w io.Writer, rows []T) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	} else if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode CSV: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(ts models.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	text, _ := ts.MarshalText()
	return string(text)
}
