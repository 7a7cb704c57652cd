package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
	"github.com/dkeye/GeoMeet/internal/metrics"
)

var (
	ErrBusy         = errors.New("another operation is in progress")
	ErrNoActiveRoom = errors.New("join a room first")
	ErrEmptyRoomID  = errors.New("enter a room ID first")
	ErrClosed       = errors.New("session closed")
)

const (
	OpCreateRoom    = "create_room"
	OpJoinRoom      = "join_room"
	OpShareLocation = "share_location"
	OpFindVenues    = "find_venues"
)

type Options struct {
	Gateway      core.RoomGateway
	Locator      core.Locator
	ClientID     domain.ClientID
	PollInterval time.Duration
}

// Coordinator is the client session: which room we are in, its latest
// membership and readiness, and a single busy flag that serializes every
// user-initiated operation. Network calls never run under mu.
type Coordinator struct {
	gateway  core.RoomGateway
	locator  core.Locator
	clientID domain.ClientID
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	busy        bool
	pending     bool
	room        *domain.Room
	displayName string
	poller      *MembershipPoller
	snapshot    domain.Snapshot
	status      domain.Status
	message     string
	venues      []domain.Venue

	subs    map[int]chan View
	nextSub int
}

func NewCoordinator(parent context.Context, opts Options) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{
		gateway:  opts.Gateway,
		locator:  opts.Locator,
		clientID: opts.ClientID,
		interval: opts.PollInterval,
		ctx:      ctx,
		cancel:   cancel,
		status:   core.Classify(nil),
		subs:     make(map[int]chan View),
	}
}

func (c *Coordinator) ClientID() domain.ClientID { return c.clientID }

// CreateRoom creates a room and enters it as its first member.
func (c *Coordinator) CreateRoom(ctx context.Context, displayName, password string) (domain.RoomID, error) {
	if err := domain.ValidateDisplayName(displayName); err != nil {
		return "", err
	}
	if _, err := c.acquire(OpCreateRoom, true, false); err != nil {
		return "", err
	}

	roomID, err := c.gateway.CreateRoom(ctx, password)
	if err == nil {
		err = c.gateway.JoinRoom(ctx, roomID, c.clientID, displayName, password)
	}
	room := domain.Room{ID: roomID, Password: password}
	if err := c.finishLifecycle(OpCreateRoom, room, displayName, err, fmt.Sprintf("Room created: %s", roomID)); err != nil {
		return "", err
	}
	return roomID, nil
}

// JoinRoom enters an existing room. On failure any room we were already in
// stays active.
func (c *Coordinator) JoinRoom(ctx context.Context, roomID domain.RoomID, displayName, password string) error {
	if roomID == "" {
		return ErrEmptyRoomID
	}
	if err := domain.ValidateDisplayName(displayName); err != nil {
		return err
	}
	if _, err := c.acquire(OpJoinRoom, true, false); err != nil {
		return err
	}

	err := c.gateway.JoinRoom(ctx, roomID, c.clientID, displayName, password)
	room := domain.Room{ID: roomID, Password: password}
	return c.finishLifecycle(OpJoinRoom, room, displayName, err, fmt.Sprintf("Joined room %s", roomID))
}

// ShareLocation takes one reading from the locator and pushes it.
func (c *Coordinator) ShareLocation(ctx context.Context) (domain.Point, error) {
	return c.share(ctx, c.locator)
}

// ShareLocationAt pushes a reading taken elsewhere, e.g. by a browser.
func (c *Coordinator) ShareLocationAt(ctx context.Context, at domain.Point) (domain.Point, error) {
	return c.share(ctx, core.LocatorFunc(func(context.Context) (domain.Point, error) { return at, nil }))
}

func (c *Coordinator) share(ctx context.Context, loc core.Locator) (domain.Point, error) {
	b, err := c.acquire(OpShareLocation, false, true)
	if err != nil {
		return domain.Point{}, err
	}

	var at domain.Point
	if loc == nil {
		err = core.ErrLocationUnavailable
	} else {
		at, err = loc.Locate(ctx)
	}
	if err == nil {
		err = c.gateway.PushLocation(ctx, b.room.ID, c.clientID, b.name, at)
	}

	c.finish(OpShareLocation, err, "Location shared", nil)
	if err != nil {
		return domain.Point{}, err
	}
	return at, nil
}

// FindVenues searches around the members currently sharing a location.
// Participant policy is checked against the latest snapshot before any
// request is sent.
func (c *Coordinator) FindVenues(ctx context.Context, keyword string, radiusMeters int) ([]domain.Venue, error) {
	b, err := c.acquire(OpFindVenues, false, true)
	if err != nil {
		return nil, err
	}

	var venues []domain.Venue
	q, err := core.BuildQuery(b.snapshot, keyword, radiusMeters)
	if err == nil {
		venues, err = c.gateway.FindVenues(ctx, q)
	}

	c.finish(OpFindVenues, err, fmt.Sprintf("Found %d venues", len(venues)), func() {
		c.venues = venues
	})
	if err != nil {
		return nil, err
	}
	return venues, nil
}

// ShareLink builds the invite link of the active room.
func (c *Coordinator) ShareLink(base string) (string, error) {
	c.mu.Lock()
	room := c.room
	c.mu.Unlock()
	if room == nil {
		return "", ErrNoActiveRoom
	}
	return core.ShareLink(base, *room)
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe returns a channel that receives the current view and every
// later change. Slow readers skip intermediate views. The channel is
// closed by the returned cancel func or by Close.
func (c *Coordinator) Subscribe(buf int) (<-chan View, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan View, buf)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		ch <- c.viewLocked()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	offer(ch, c.viewLocked())

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Close tears the session down: the poller stops and replies that arrive
// later are discarded. In-flight requests are not cancelled.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.poller != nil {
		c.poller.Stop()
		c.poller = nil
	}
	c.room = nil
	c.snapshot = nil
	c.status = core.Classify(nil)
	metrics.SharingMembers.Set(0)
	c.cancel()

	v := c.viewLocked()
	for id, ch := range c.subs {
		offer(ch, v)
		close(ch)
		delete(c.subs, id)
	}
	log.Info().Str("module", "app.coordinator").Str("client_id", string(c.clientID)).Msg("session closed")
}

// binding is what an operation works on, captured when it takes the busy
// flag so a concurrent Close cannot change it underneath.
type binding struct {
	room     domain.Room
	name     string
	snapshot domain.Snapshot
}

// acquire takes the busy flag. lifecycle marks a create/join in flight;
// needRoom requires an active room.
func (c *Coordinator) acquire(op string, lifecycle, needRoom bool) (binding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return binding{}, ErrClosed
	case c.busy:
		metrics.Operations.WithLabelValues(op, "busy").Inc()
		log.Debug().Str("module", "app.coordinator").Str("op", op).Msg("rejected, busy")
		return binding{}, ErrBusy
	case needRoom && c.room == nil:
		return binding{}, ErrNoActiveRoom
	}
	c.busy = true
	c.pending = lifecycle
	c.publishLocked()

	b := binding{name: c.displayName, snapshot: slices.Clone(c.snapshot)}
	if c.room != nil {
		b.room = *c.room
	}
	return b, nil
}

// finish releases the busy flag and records the outcome of a non-lifecycle
// operation. apply runs under mu on success only.
func (c *Coordinator) finish(op string, err error, okMessage string, apply func()) {
	metrics.Operations.WithLabelValues(op, metrics.Result(err)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if c.closed {
		return
	}
	if err != nil {
		c.message = err.Error()
		log.Warn().Err(err).Str("module", "app.coordinator").Str("op", op).Msg("operation failed")
	} else {
		c.message = okMessage
		if apply != nil {
			apply()
		}
		log.Info().Str("module", "app.coordinator").Str("op", op).Msg(okMessage)
	}
	c.publishLocked()
}

// finishLifecycle resolves RoomPending: success rebinds the session to room
// with a fresh poller, failure leaves the previous binding as it was.
func (c *Coordinator) finishLifecycle(op string, room domain.Room, displayName string, err error, okMessage string) error {
	metrics.Operations.WithLabelValues(op, metrics.Result(err)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.pending = false

	if c.closed {
		if err != nil {
			return err
		}
		return ErrClosed
	}
	if err != nil {
		c.message = err.Error()
		log.Warn().Err(err).Str("module", "app.coordinator").Str("op", op).Str("room", string(room.ID)).Msg("room lifecycle failed")
		c.publishLocked()
		return err
	}

	if c.poller != nil {
		c.poller.Stop()
	}
	c.room = &room
	c.displayName = displayName
	c.snapshot = nil
	c.status = core.Classify(nil)
	c.venues = nil
	c.message = okMessage
	metrics.SharingMembers.Set(0)

	var p *MembershipPoller
	p = NewMembershipPoller(c.gateway, room.ID, c.interval, func(s domain.Snapshot) {
		c.applySnapshot(p, s)
	})
	c.poller = p
	if err := p.Start(c.ctx); err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("poller start")
	}

	log.Info().Str("module", "app.coordinator").Str("op", op).Str("room", string(room.ID)).Str("name", displayName).Msg("room active")
	c.publishLocked()
	return nil
}

// applySnapshot installs a poll result unless it belongs to a poller that
// is no longer the current one.
func (c *Coordinator) applySnapshot(from *MembershipPoller, s domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.poller != from {
		return
	}
	c.snapshot = s
	prev := c.status
	c.status = core.Classify(s)
	metrics.SharingMembers.Set(float64(len(core.SharingPoints(s))))
	if prev != c.status {
		log.Info().Str("module", "app.coordinator").Str("room", string(from.RoomID())).Stringer("status", c.status).Msg("status changed")
	}
	c.publishLocked()
}

func (c *Coordinator) stateLocked() State {
	switch {
	case c.pending:
		return RoomPending
	case c.room != nil:
		return RoomActive
	default:
		return Idle
	}
}

func (c *Coordinator) viewLocked() View {
	v := View{
		State:       c.stateLocked(),
		Busy:        c.busy,
		ClientID:    c.clientID,
		DisplayName: c.displayName,
		Members:     slices.Clone(c.snapshot),
		Status:      c.status,
		Message:     c.message,
		Venues:      slices.Clone(c.venues),
	}
	if c.room != nil {
		v.RoomID = c.room.ID
	}
	if v.Members == nil {
		v.Members = domain.Snapshot{}
	}
	return v
}

func (c *Coordinator) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	v := c.viewLocked()
	for _, ch := range c.subs {
		offer(ch, v)
	}
}
