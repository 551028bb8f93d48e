package models

import "strconv"

// Query parameter names. They mirror the remote listing API exactly.
const (
	ParamCity         = "city"
	ParamRegion       = "region"
	ParamPropertyType = "property_type"
	ParamMinPrice     = "min_price"
	ParamMaxPrice     = "max_price"
	ParamMinRooms     = "min_rooms"
	ParamMinBathrooms = "min_bathrooms"
	ParamSkip         = "skip"
	ParamLimit        = "limit"
)

// FilterRecord is the listing filter. An empty string or nil pointer means
// "no constraint".
type FilterRecord struct {
	City         string
	Region       string
	PropertyType string
	MinPrice     *float64
	MaxPrice     *float64
	MinRooms     *float64
	MinBathrooms *float64
}

// Params encodes the record as query parameters, omitting absent fields.
func (f FilterRecord) Params() map[string]string {
	params := make(map[string]string, 7)
	setString := func(key, v string) {
		if v != "" {
			params[key] = v
		}
	}
	setNumber := func(key string, v *float64) {
		if v != nil {
			params[key] = FormatNumber(*v)
		}
	}
	setString(ParamCity, f.City)
	setString(ParamRegion, f.Region)
	setString(ParamPropertyType, f.PropertyType)
	setNumber(ParamMinPrice, f.MinPrice)
	setNumber(ParamMaxPrice, f.MaxPrice)
	setNumber(ParamMinRooms, f.MinRooms)
	setNumber(ParamMinBathrooms, f.MinBathrooms)
	return params
}

// ActiveCount returns the number of non-absent fields.
func (f FilterRecord) ActiveCount() int {
	return len(f.Params())
}

// IsEmpty reports whether no field constrains the listing.
func (f FilterRecord) IsEmpty() bool {
	return f.ActiveCount() == 0
}

// Equal compares two records field by field, including pointed-to numbers.
func (f FilterRecord) Equal(o FilterRecord) bool {
	a, b := f.Params(), o.Params()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// FormatNumber renders v in the shortest form that parses back to v.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
