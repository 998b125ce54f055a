package receiver

import (
	"time"

	"rcrx/internal/rx"
)

// LinkState is the service's view of the radio link, derived from frame
// arrival and the receiver's failsafe flag.
type LinkState int

const (
	LinkWaiting LinkState = iota
	LinkOK
	LinkFailsafe
	LinkLost
)

func (l LinkState) String() string {
	switch l {
	case LinkWaiting:
		return "waiting"
	case LinkOK:
		return "ok"
	case LinkFailsafe:
		return "failsafe"
	case LinkLost:
		return "lost"
	default:
		return "unknown"
	}
}

type Snapshot struct {
	Protocol string `json:"protocol"`
	Source   string `json:"source,omitempty"`
	Attached bool   `json:"attached"`
	Link     string `json:"link"`

	Seq        uint64    `json:"seq"`
	Failsafe   bool      `json:"failsafe"`
	StatusByte byte      `json:"status_byte"`
	Declared   int       `json:"declared_channels"`
	Channels   []uint16  `json:"channels_us"`
	LastFrame  time.Time `json:"last_frame,omitzero"`
	FrameAgeMS int64     `json:"frame_age_ms"`

	Stats     rx.Stats `json:"stats"`
	LastError string   `json:"last_error,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	s.Channels = append([]uint16(nil), s.Channels...)
	return s
}

// Healthy reports a valid non-failsafe link.
func (s Snapshot) Healthy() bool { return s.Link == LinkOK.String() }
