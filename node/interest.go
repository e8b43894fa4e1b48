package node

import "strings"

// Interest is the set of readiness conditions a socket is armed for.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
	Hangup
)

func (i Interest) IsEmpty() bool {
	return i == 0
}

func (i Interest) Contains(other Interest) bool {
	return i&other == other
}

func (i Interest) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	if i&Readable != 0 {
		parts = append(parts, "readable")
	}
	if i&Writable != 0 {
		parts = append(parts, "writable")
	}
	if i&Hangup != 0 {
		parts = append(parts, "hangup")
	}
	return strings.Join(parts, "|")
}

// Mode selects how readiness is reported for a registration.
type Mode uint8

const (
	Edge Mode = 1 << iota
	Oneshot
)

// Level is the zero mode: readiness is reported for as long as it holds.
const Level Mode = 0

// RecomputeInterest derives the interest set of a connection from its
// buffer occupancy and half-close state. An empty result means the
// connection has nothing left to do and must be torn down.
//
// Writable is armed while bytes wait to be echoed; readable while the peer
// may still send and there is room to receive it.
func RecomputeInterest(buffered, free int, peerHalfClosed bool) Interest {
	if peerHalfClosed && buffered == 0 {
		return 0
	}

	interest := Hangup
	if buffered > 0 {
		interest |= Writable
	}
	if !peerHalfClosed && free > 0 {
		interest |= Readable
	}
	return interest
}
