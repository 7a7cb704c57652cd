package core

import "github.com/dkeye/GeoMeet/internal/domain"

// BuildQuery turns a snapshot into a venue search. It rejects exactly when
// Classify would not report Ready. keyword and radius are passed through.
func BuildQuery(s domain.Snapshot, keyword string, radiusMeters int) (domain.VenueQuery, error) {
	centers := SharingPoints(s)
	switch classifyCount(len(centers)) {
	case domain.InsufficientParticipants:
		return domain.VenueQuery{}, ErrTooFewParticipants
	case domain.TooManyParticipants:
		return domain.VenueQuery{}, ErrTooManyParticipants
	}
	return domain.VenueQuery{
		Keyword:      keyword,
		RadiusMeters: radiusMeters,
		Centers:      centers,
	}, nil
}
