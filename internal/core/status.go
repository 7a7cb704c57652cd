package core

import "github.com/dkeye/GeoMeet/internal/domain"

const (
	MinSharingMembers = 2
	MaxSharingMembers = 5
)

// SharingPoints returns the locations of members that currently share one,
// in snapshot order.
func SharingPoints(s domain.Snapshot) []domain.Point {
	out := make([]domain.Point, 0, len(s))
	for _, m := range s {
		if p, ok := m.Location(); ok {
			out = append(out, p)
		}
	}
	return out
}

// Classify derives readiness from the count of sharing members only.
func Classify(s domain.Snapshot) domain.Status {
	return classifyCount(len(SharingPoints(s)))
}

func classifyCount(n int) domain.Status {
	switch {
	case n < MinSharingMembers:
		return domain.InsufficientParticipants
	case n > MaxSharingMembers:
		return domain.TooManyParticipants
	default:
		return domain.Ready
	}
}
