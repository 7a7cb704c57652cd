package domain

// Status is the readiness of a room for a venue search.
type Status int

const (
	InsufficientParticipants Status = iota
	Ready
	TooManyParticipants
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case TooManyParticipants:
		return "too_many_participants"
	default:
		return "insufficient_participants"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
