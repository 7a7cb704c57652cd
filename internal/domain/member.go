package domain

// Member is one participant of a room as reported by the remote service.
// Lat and Lon are nil until the member has shared a location.
type Member struct {
	ClientID ClientID `json:"clientId"`
	Name     string   `json:"name"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
}

// Location reports the shared point. Presence of both coordinates is what
// counts, so (0,0) is a valid location.
func (m Member) Location() (Point, bool) {
	if m.Lat == nil || m.Lon == nil {
		return Point{}, false
	}
	return Point{Lat: *m.Lat, Lon: *m.Lon}, true
}

// NewSharingMember avoids pointer juggling in adapters and tests.
func NewSharingMember(id ClientID, name string, lat, lon float64) Member {
	return Member{ClientID: id, Name: name, Lat: &lat, Lon: &lon}
}

// Snapshot is the complete membership of a room at one point in time.
// It always replaces the previous one wholesale.
type Snapshot []Member
