// Package filters holds the draft filter form and commits it to the URL store.
//
// The URL is read into the draft once, when the Controller is created, and
// the draft is written back only by Apply. No other path syncs the two.
package filters

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"scooby/models"
	"scooby/urlstate"
)

type Field string

const (
	FieldCity         Field = models.ParamCity
	FieldRegion       Field = models.ParamRegion
	FieldPropertyType Field = models.ParamPropertyType
	FieldMinPrice     Field = models.ParamMinPrice
	FieldMaxPrice     Field = models.ParamMaxPrice
	FieldMinRooms     Field = models.ParamMinRooms
	FieldMinBathrooms Field = models.ParamMinBathrooms
)

// Fields lists the form fields in display order.
var Fields = []Field{
	FieldCity, FieldRegion, FieldPropertyType,
	FieldMinPrice, FieldMaxPrice, FieldMinRooms, FieldMinBathrooms,
}

// IsNumeric reports whether f holds a number.
func (f Field) IsNumeric() bool {
	switch f {
	case FieldMinPrice, FieldMaxPrice, FieldMinRooms, FieldMinBathrooms:
		return true
	}
	return false
}

type State int

const (
	StateIdle State = iota
	StateEditing
)

func (s State) String() string {
	if s == StateEditing {
		return "editing"
	}
	return "idle"
}

// FromStore decodes the committed FilterRecord from the store.
func FromStore(s *urlstate.Store) models.FilterRecord {
	return models.FilterRecord{
		City:         s.Get(models.ParamCity, ""),
		Region:       s.Get(models.ParamRegion, ""),
		PropertyType: s.Get(models.ParamPropertyType, ""),
		MinPrice:     s.GetNumberParam(models.ParamMinPrice, nil),
		MaxPrice:     s.GetNumberParam(models.ParamMaxPrice, nil),
		MinRooms:     s.GetNumberParam(models.ParamMinRooms, nil),
		MinBathrooms: s.GetNumberParam(models.ParamMinBathrooms, nil),
	}
}

// Controller owns the draft filter record.
type Controller struct {
	store *urlstate.Store

	mu    sync.Mutex
	draft models.FilterRecord
}

// NewController seeds the draft from the store's current query.
func NewController(store *urlstate.Store) *Controller {
	return &Controller{store: store, draft: FromStore(store)}
}

// HandleChange updates one draft field. Numeric fields accept only finite
// numbers; empty or unparsable input leaves the field absent. Only an
// unknown field is an error.
func (c *Controller) HandleChange(field Field, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch field {
	case FieldCity:
		c.draft.City = raw
	case FieldRegion:
		c.draft.Region = raw
	case FieldPropertyType:
		c.draft.PropertyType = raw
	case FieldMinPrice:
		c.draft.MinPrice = parseNumber(raw)
	case FieldMaxPrice:
		c.draft.MaxPrice = parseNumber(raw)
	case FieldMinRooms:
		c.draft.MinRooms = parseNumber(raw)
	case FieldMinBathrooms:
		c.draft.MinBathrooms = parseNumber(raw)
	default:
		return fmt.Errorf("unknown filter field %q", field)
	}
	return nil
}

func parseNumber(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Draft returns a copy of the uncommitted record.
func (c *Controller) Draft() models.FilterRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// DraftValue renders one draft field as form text.
func (c *Controller) DraftValue(field Field) string {
	return c.Draft().Params()[string(field)]
}

// Committed returns the record currently encoded in the store.
func (c *Controller) Committed() models.FilterRecord {
	return FromStore(c.store)
}

// State is Editing while the draft differs from the committed record.
func (c *Controller) State() State {
	if c.Draft().Equal(c.Committed()) {
		return StateIdle
	}
	return StateEditing
}

// Apply commits the draft to the store, replacing the whole query.
// Pagination is dropped, so a new filter starts from the first page.
func (c *Controller) Apply() {
	c.store.SetParams(c.Draft().Params())
}

// Clear empties the draft and the store.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.draft = models.FilterRecord{}
	c.mu.Unlock()
	c.store.ClearParams()
}

// HasActiveFilters reports whether the committed record constrains anything.
func (c *Controller) HasActiveFilters() bool {
	return !c.Committed().IsEmpty()
}

// ActiveFilterCount counts the non-absent fields of the draft.
func (c *Controller) ActiveFilterCount() int {
	return c.Draft().ActiveCount()
}
