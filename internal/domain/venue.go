package domain

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Venue is a read-only search result.
type Venue struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Address  string `json:"address,omitempty"`
}

type VenueQuery struct {
	Keyword      string  `json:"keyword"`
	RadiusMeters int     `json:"radius"`
	Centers      []Point `json:"centers"`
}
