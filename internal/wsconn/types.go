package wsconn

import (
	"errors"

	"github.com/park285/kkeutmal-client/pkg/gamedto"
)

// State is the lifecycle of the single transport handle owned by a Manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is the externally visible connection condition. Reconnecting is a
// sub-state entered from Closed while retry attempts remain; Exhausted is
// terminal and requires a manual reconnect.
type Status struct {
	State        State
	Reconnecting bool
	Attempts     int
	Exhausted    bool
	AuthRejected bool
	LastError    string
}

var (
	// ErrNotConnected is the sentinel returned by Emit when the transport
	// is not open. Callers treat it as a skipped send, not a failure.
	ErrNotConnected = errors.New("wsconn: not connected")

	// ErrAuthRejected marks a terminal credential rejection; no retry.
	ErrAuthRejected = errors.New("wsconn: auth rejected")

	// ErrRetriesExhausted marks the end of automatic reconnection.
	ErrRetriesExhausted = errors.New("wsconn: reconnect attempts exhausted")
)

type MessageFunc func(ev *gamedto.Inbound)

type StateFunc func(st Status)
