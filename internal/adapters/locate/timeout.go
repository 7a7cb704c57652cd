package locate

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
)

type timeoutLocator struct {
	next    core.Locator
	timeout time.Duration
}

// WithTimeout bounds a single reading. Running out of time is reported as
// ErrLocationTimeout. A zero timeout returns next unchanged.
func WithTimeout(next core.Locator, timeout time.Duration) core.Locator {
	if timeout <= 0 || next == nil {
		return next
	}
	return &timeoutLocator{next: next, timeout: timeout}
}

func (l *timeoutLocator) Locate(ctx context.Context) (domain.Point, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	p, err := l.next.Locate(ctx)
	if err != nil {
		return domain.Point{}, mapContextErr(err)
	}
	return p, nil
}

func mapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.ErrLocationTimeout
	}
	return err
}
