package feed

type BackpressureAction int

const (
	DropUpdate BackpressureAction = iota
	Disconnect
)

// Policy decides what happens to a feed whose send buffer is full.
type Policy interface {
	OnBackPressure(conn *WsFeedConn) BackpressureAction
}

// SimplePolicy disconnects slow readers; browsers reconnect and get the
// current view on subscribe.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*WsFeedConn) BackpressureAction {
	return Disconnect
}

// DropPolicy keeps slow readers and skips the update.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(*WsFeedConn) BackpressureAction {
	return DropUpdate
}
