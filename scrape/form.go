package scrape

import (
	"slices"
	"strconv"
	"strings"

	"scooby/models"
)

// Form is the editable state of the scrape form. Submitting never changes it.
type Form struct {
	City          string
	Region        string
	PropertyTypes []string
	MaxPages      int
}

// NewForm returns the form with its initial selection.
func NewForm() Form {
	return Form{
		PropertyTypes: []string{"casas"},
		MaxPages:      DefaultMaxPages,
	}
}

// Toggle adds or removes a property type, keeping the order of
// models.PropertyTypeOptions.
func (f *Form) Toggle(propertyType string) {
	if f.Selected(propertyType) {
		f.PropertyTypes = slices.DeleteFunc(slices.Clone(f.PropertyTypes), func(t string) bool { return t == propertyType })
		return
	}
	var next []string
	for _, opt := range models.PropertyTypeOptions {
		if opt == propertyType || f.Selected(opt) {
			next = append(next, opt)
		}
	}
	for _, t := range f.PropertyTypes {
		if !slices.Contains(models.PropertyTypeOptions, t) {
			next = append(next, t)
		}
	}
	f.PropertyTypes = next
}

func (f Form) Selected(propertyType string) bool {
	return slices.Contains(f.PropertyTypes, propertyType)
}

// SetMaxPages parses a page count typed by the user. Invalid input leaves
// the previous value.
func (f *Form) SetMaxPages(raw string) {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		f.MaxPages = n
	}
}

// CanSubmit reports whether the submit action should be enabled.
func (f Form) CanSubmit() bool {
	_, err := Normalize(f.Request())
	return err == nil
}

func (f Form) Request() models.ScrapeRequest {
	return models.ScrapeRequest{
		City:          f.City,
		Region:        f.Region,
		PropertyTypes: slices.Clone(f.PropertyTypes),
		MaxPages:      f.MaxPages,
	}
}
