package core

import "errors"

var (
	ErrAuthFailure  = errors.New("room password rejected")
	ErrRoomNotFound = errors.New("room not found")

	ErrLocationUnavailable = errors.New("location unavailable")
	ErrLocationDenied      = errors.New("location permission denied")
	ErrLocationTimeout     = errors.New("location request timed out")

	ErrTooFewParticipants  = errors.New("at least 2 members must share their location")
	ErrTooManyParticipants = errors.New("at most 5 members may share their location")
)

// RemoteError is any failure of a RoomGateway call. Message is what the
// remote service (or the transport) said and is surfaced unchanged.
type RemoteError struct {
	Op      string
	Message string
	// Kind is ErrAuthFailure, ErrRoomNotFound or nil.
	Kind error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Kind }

func NewRemoteError(op, message string) *RemoteError {
	return &RemoteError{Op: op, Message: message}
}

// IsRemote reports whether err came from the gateway.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsLocation reports whether err is one of the location capability failures.
func IsLocation(err error) bool {
	return errors.Is(err, ErrLocationUnavailable) ||
		errors.Is(err, ErrLocationDenied) ||
		errors.Is(err, ErrLocationTimeout)
}

// IsPolicy reports whether err is a participant-count violation.
func IsPolicy(err error) bool {
	return errors.Is(err, ErrTooFewParticipants) || errors.Is(err, ErrTooManyParticipants)
}
