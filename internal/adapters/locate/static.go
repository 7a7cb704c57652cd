// Package locate provides the device location capabilities used when
// sharing a location.
package locate

import (
	"context"

	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
)

// Static reports a configured position. A nil Static has no capability.
type Static struct {
	at *domain.Point
}

func NewStatic(lat, lon float64) *Static {
	return &Static{at: &domain.Point{Lat: lat, Lon: lon}}
}

func (s *Static) Locate(ctx context.Context) (domain.Point, error) {
	if s == nil || s.at == nil {
		return domain.Point{}, core.ErrLocationUnavailable
	}
	if err := ctx.Err(); err != nil {
		return domain.Point{}, mapContextErr(err)
	}
	return *s.at, nil
}
