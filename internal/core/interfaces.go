package core

import (
	"context"

	"github.com/dkeye/GeoMeet/internal/domain"
)

// RoomGateway is the contract with the remote room service.
// Every call is a single request/response; implementations must not retry.
// Failures are reported as *RemoteError carrying the remote message verbatim.
type RoomGateway interface {
	CreateRoom(ctx context.Context, password string) (domain.RoomID, error)
	JoinRoom(ctx context.Context, roomID domain.RoomID, clientID domain.ClientID, displayName, password string) error
	PushLocation(ctx context.Context, roomID domain.RoomID, clientID domain.ClientID, displayName string, at domain.Point) error
	GetMembers(ctx context.Context, roomID domain.RoomID) (domain.Snapshot, error)
	FindVenues(ctx context.Context, q domain.VenueQuery) ([]domain.Venue, error)
}

// Locator is the device location capability. Locate takes a single reading;
// failures are ErrLocationUnavailable, ErrLocationDenied or ErrLocationTimeout.
type Locator interface {
	Locate(ctx context.Context) (domain.Point, error)
}

// KVStore is the durable local storage used for the client identity.
type KVStore interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// LocatorFunc adapts a plain function to Locator.
type LocatorFunc func(ctx context.Context) (domain.Point, error)

func (f LocatorFunc) Locate(ctx context.Context) (domain.Point, error) { return f(ctx) }
