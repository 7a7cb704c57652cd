package gateway

import "github.com/dkeye/GeoMeet/internal/domain"

type createRoomRequest struct {
	Password string `json:"password"`
}

type joinRoomRequest struct {
	RoomID      string `json:"roomId"`
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type locationRequest struct {
	RoomID      string  `json:"roomId"`
	ClientID    string  `json:"clientId"`
	DisplayName string  `json:"displayName"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

type venuesRequest struct {
	Keyword   string         `json:"keyword"`
	Radius    int            `json:"radius"`
	Locations []domain.Point `json:"locations"`
}

// envelope is the common response shape: success plus an optional message.
type envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	RoomID   string          `json:"roomId"`
	ClientID string          `json:"clientId"`
	Members  domain.Snapshot `json:"members"`
	Venues   []domain.Venue  `json:"venues"`
}
