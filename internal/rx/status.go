package rx

import (
	"fmt"
	"time"
)

// State is the frame assembler position.
type State uint8

const (
	AwaitingSync State = iota
	ReadingStatus
	ReadingLength
	ReadingPayload
	ReadingChecksum
)

func (s State) String() string {
	switch s {
	case AwaitingSync:
		return "awaiting_sync"
	case ReadingStatus:
		return "reading_status"
	case ReadingLength:
		return "reading_length"
	case ReadingPayload:
		return "reading_payload"
	case ReadingChecksum:
		return "reading_checksum"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Status is what CheckFrameStatus reports.
type Status uint8

const (
	NothingNew Status = iota
	Complete
	CompleteWithFailsafe
)

func (s Status) String() string {
	switch s {
	case NothingNew:
		return "nothing_new"
	case Complete:
		return "complete"
	case CompleteWithFailsafe:
		return "complete_failsafe"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Frame is the snapshot published when a frame passes its checksum. It is
// never modified after publication.
type Frame struct {
	// Seq counts published frames; 0 is the initial empty snapshot.
	Seq uint64

	Status     Status
	StatusByte byte
	Valid      bool
	Failsafe   bool

	// Declared is the channel count the frame carried on the wire.
	Declared int

	// Raw and Micros have Format.Channels entries. Entries beyond Declared
	// keep the values of earlier frames.
	Raw    []uint16
	Micros []uint16

	At time.Time
}

func (f *Frame) clone() Frame {
	out := *f
	out.Raw = append([]uint16(nil), f.Raw...)
	out.Micros = append([]uint16(nil), f.Micros...)
	return out
}

// cursor packs the assembler position into one word so the watchdog can
// claim a partial frame with a single compare-and-swap:
// bits 0-7 state, 16-31 bytes collected, 32-63 frame generation.
type cursor uint64

func makeCursor(gen uint32, n int, st State) cursor {
	return cursor(uint64(gen)<<32 | uint64(uint16(n))<<16 | uint64(st))
}

func (c cursor) state() State { return State(c & 0xFF) }

func (c cursor) gen() uint32 { return uint32(c >> 32) }

func (c cursor) synced() cursor { return makeCursor(c.gen(), 0, AwaitingSync) }
