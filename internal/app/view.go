package app

import (
	"github.com/dkeye/GeoMeet/internal/domain"
)

type State int

const (
	Idle State = iota
	RoomPending
	RoomActive
)

func (s State) String() string {
	switch s {
	case RoomPending:
		return "room_pending"
	case RoomActive:
		return "room_active"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// View is a read-only copy of the coordinator state for adapters.
type View struct {
	State       State           `json:"state"`
	Busy        bool            `json:"busy"`
	ClientID    domain.ClientID `json:"clientId"`
	DisplayName string          `json:"displayName,omitempty"`
	RoomID      domain.RoomID   `json:"roomId,omitempty"`
	Members     domain.Snapshot `json:"members"`
	Status      domain.Status   `json:"status"`
	Message     string          `json:"message,omitempty"`
	Venues      []domain.Venue  `json:"venues,omitempty"`
}

// offer delivers v without blocking. A full subscriber loses its oldest
// pending view so the latest one always gets through.
func offer(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
