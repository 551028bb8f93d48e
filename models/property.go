package models

// PropertyRecord is a listing as served by the remote catalog. The client
// never mutates it.
type PropertyRecord struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	Title        *string    `json:"title"`
	Price        *float64   `json:"price"`
	Rooms        *int       `json:"rooms"`
	Bathrooms    *int       `json:"bathrooms"`
	Surface      *float64   `json:"surface"`
	SurfaceUnit  *string    `json:"surface_unit"`
	City         *string    `json:"city"`
	Region       *string    `json:"region"`
	PropertyType *string    `json:"property_type"`
	ImageURLs    []string   `json:"image_urls"`
	CreatedAt    Timestamp  `json:"created_at"`
	UpdatedAt    *Timestamp `json:"updated_at"`
}

// CityCount is one row of GET /api/v1/properties/stats/city.
type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// CityAvgPrice is one row of GET /api/v1/properties/stats/price.
type CityAvgPrice struct {
	City     string  `json:"city"`
	AvgPrice float64 `json:"avg_price"`
}

// Str dereferences an optional string, returning "" when absent.
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
