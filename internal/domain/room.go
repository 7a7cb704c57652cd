package domain

type RoomID string

// Room is the client-side binding to a remote room: the id and the password
// that was used to enter it. The password is only ever forwarded.
type Room struct {
	ID       RoomID
	Password string
}
