package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
	"github.com/dkeye/GeoMeet/internal/metrics"
)

const DefaultPollInterval = 3 * time.Second

var ErrPollerStopped = errors.New("poller stopped")

// MembershipPoller fetches the membership of one room over and over.
// The next fetch is scheduled only after the previous one returned, so at
// most one request is in flight. Fetch errors are absorbed.
// A poller is bound to a single room and cannot be restarted once stopped.
type MembershipPoller struct {
	gateway    core.RoomGateway
	roomID     domain.RoomID
	schedule   backoff.BackOff
	onSnapshot func(domain.Snapshot)

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewMembershipPoller(
	gw core.RoomGateway,
	roomID domain.RoomID,
	interval time.Duration,
	onSnapshot func(domain.Snapshot),
) *MembershipPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &MembershipPoller{
		gateway:    gw,
		roomID:     roomID,
		schedule:   backoff.NewConstantBackOff(interval),
		onSnapshot: onSnapshot,
		done:       make(chan struct{}),
	}
}

func (p *MembershipPoller) RoomID() domain.RoomID { return p.roomID }

// Start launches the loop. The first fetch happens immediately.
// Calling Start twice is a no-op; calling it after Stop fails.
func (p *MembershipPoller) Start(parent context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPollerStopped
	}
	if p.started {
		return nil
	}
	ctx, cancel := context.WithCancel(parent)
	p.started = true
	p.cancel = cancel
	go p.loop(ctx)
	log.Info().Str("module", "app.poller").Str("room", string(p.roomID)).Msg("poller started")
	return nil
}

// Stop ends polling right away. It does not wait for an in-flight fetch;
// results of such a fetch are dropped.
func (p *MembershipPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	} else {
		close(p.done)
	}
	log.Info().Str("module", "app.poller").Str("room", string(p.roomID)).Msg("poller stopped")
}

// Done is closed once the loop has exited.
func (p *MembershipPoller) Done() <-chan struct{} { return p.done }

func (p *MembershipPoller) loop(ctx context.Context) {
	defer close(p.done)
	p.schedule.Reset()

	for {
		p.pollOnce(ctx)

		wait := p.schedule.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *MembershipPoller) pollOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	snap, err := p.gateway.GetMembers(ctx, p.roomID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		metrics.MembershipPolls.WithLabelValues("error").Inc()
		log.Debug().Err(err).Str("module", "app.poller").Str("room", string(p.roomID)).Msg("membership fetch failed")
		return
	}
	metrics.MembershipPolls.WithLabelValues("ok").Inc()
	p.onSnapshot(snap)
}
