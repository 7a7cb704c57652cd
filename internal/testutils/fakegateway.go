// Package testutils provides an in-memory room service for tests.
package testutils

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
)

const (
	OpCreateRoom   = "createRoom"
	OpJoinRoom     = "joinRoom"
	OpPushLocation = "pushLocation"
	OpGetMembers   = "getMembers"
	OpFindVenues   = "findVenues"
)

type fakeRoom struct {
	password string
	members  domain.Snapshot
}

// FakeGateway implements core.RoomGateway in memory. Tests can queue
// failures per operation and gate calls so they block until released.
type FakeGateway struct {
	Venues []domain.Venue

	mu          sync.Mutex
	seq         int
	rooms       map[domain.RoomID]*fakeRoom
	calls       map[string][]time.Time
	inFlight    map[string]int
	maxInFlight map[string]int
	failures    map[string][]error
	gates       map[string]chan struct{}
	queries     []domain.VenueQuery
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		rooms:       make(map[domain.RoomID]*fakeRoom),
		calls:       make(map[string][]time.Time),
		inFlight:    make(map[string]int),
		maxInFlight: make(map[string]int),
		failures:    make(map[string][]error),
		gates:       make(map[string]chan struct{}),
	}
}

// FailNext makes the next call of op return err.
func (g *FakeGateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = append(g.failures[op], err)
}

// Gate makes every later call of op wait for a value on the returned
// channel, or for it to be closed.
func (g *FakeGateway) Gate(op string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[op] = ch
	return ch
}

func (g *FakeGateway) Ungate(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.gates, op)
}

func (g *FakeGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls[op])
}

// CallTimes returns when each call of op started.
func (g *FakeGateway) CallTimes(op string) []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls[op])
}

func (g *FakeGateway) MaxInFlight(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxInFlight[op]
}

func (g *FakeGateway) Queries() []domain.VenueQuery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.queries)
}

// SetMembers replaces the membership of a room, creating it if needed.
func (g *FakeGateway) SetMembers(roomID domain.RoomID, s domain.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		r = &fakeRoom{}
		g.rooms[roomID] = r
	}
	r.members = slices.Clone(s)
}

func (g *FakeGateway) enter(ctx context.Context, op string) (func(), error) {
	g.mu.Lock()
	g.calls[op] = append(g.calls[op], time.Now())
	g.inFlight[op]++
	if g.inFlight[op] > g.maxInFlight[op] {
		g.maxInFlight[op] = g.inFlight[op]
	}
	var err error
	if q := g.failures[op]; len(q) > 0 {
		err, g.failures[op] = q[0], q[1:]
	}
	gate := g.gates[op]
	g.mu.Unlock()

	exit := func() {
		g.mu.Lock()
		g.inFlight[op]--
		g.mu.Unlock()
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return exit, ctx.Err()
		}
	}
	return exit, err
}

func (g *FakeGateway) CreateRoom(ctx context.Context, password string) (domain.RoomID, error) {
	exit, err := g.enter(ctx, OpCreateRoom)
	defer exit()
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := domain.RoomID(fmt.Sprintf("room-%d", g.seq))
	g.rooms[id] = &fakeRoom{password: password}
	return id, nil
}

func (g *FakeGateway) JoinRoom(ctx context.Context, roomID domain.RoomID, clientID domain.ClientID, displayName, password string) error {
	exit, err := g.enter(ctx, OpJoinRoom)
	defer exit()
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return &core.RemoteError{Op: OpJoinRoom, Message: "Room not found", Kind: core.ErrRoomNotFound}
	}
	if r.password != password {
		return &core.RemoteError{Op: OpJoinRoom, Message: "Incorrect password", Kind: core.ErrAuthFailure}
	}
	for i := range r.members {
		if r.members[i].ClientID == clientID {
			r.members[i].Name = displayName
			return nil
		}
	}
	r.members = append(r.members, domain.Member{ClientID: clientID, Name: displayName})
	return nil
}

func (g *FakeGateway) PushLocation(ctx context.Context, roomID domain.RoomID, clientID domain.ClientID, displayName string, at domain.Point) error {
	exit, err := g.enter(ctx, OpPushLocation)
	defer exit()
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return core.NewRemoteError(OpPushLocation, "Room not found")
	}
	for i := range r.members {
		if r.members[i].ClientID == clientID {
			r.members[i] = domain.NewSharingMember(clientID, displayName, at.Lat, at.Lon)
			return nil
		}
	}
	return core.NewRemoteError(OpPushLocation, "Not a member of this room")
}

func (g *FakeGateway) GetMembers(ctx context.Context, roomID domain.RoomID) (domain.Snapshot, error) {
	exit, err := g.enter(ctx, OpGetMembers)
	defer exit()
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		return nil, core.NewRemoteError(OpGetMembers, "Room not found")
	}
	return slices.Clone(r.members), nil
}

func (g *FakeGateway) FindVenues(ctx context.Context, q domain.VenueQuery) ([]domain.Venue, error) {
	exit, err := g.enter(ctx, OpFindVenues)
	defer exit()
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, q)
	return slices.Clone(g.Venues), nil
}
