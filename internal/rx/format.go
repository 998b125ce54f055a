package rx

import (
	"errors"
	"fmt"
	"time"
)

const (
	headerLen   = 3 // sync + status + channel count
	checksumLen = 2
)

// Format describes one framed receiver protocol of the
// sync/status/count/payload/CRC16 family.
type Format struct {
	Name string

	// Sync is the first byte of every frame.
	Sync byte

	// WireChannels is the largest channel count a frame may declare. Frames
	// declaring more are rejected as malformed.
	WireChannels int

	// Channels is the number of channel values exposed to the consumer.
	// Frames declaring more are decoded up to this count; the rest of the
	// payload is checksummed and ignored.
	Channels int

	// Classify maps the status byte of a checksum-valid frame to the status
	// reported to the consumer. ok=false drops the frame.
	Classify func(status byte) (st Status, ok bool)

	// Micros converts a raw channel value to pulse width in microseconds.
	Micros func(raw uint16) uint16

	// StaleTimeout is the largest gap between two bytes of one frame.
	StaleTimeout time.Duration

	// RefreshRate is the nominal frame period, used as the polling cadence.
	RefreshRate time.Duration

	Baud int
}

var ErrInvalidFormat = errors.New("rx: invalid format")

func (f Format) Validate() error {
	if f.WireChannels <= 0 || f.WireChannels > 0xFF {
		return fmt.Errorf("%w: wire channels %d out of range 1..255", ErrInvalidFormat, f.WireChannels)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channels must be > 0", ErrInvalidFormat)
	}
	if f.Classify == nil {
		return fmt.Errorf("%w: classify is nil", ErrInvalidFormat)
	}
	if f.Micros == nil {
		return fmt.Errorf("%w: micros is nil", ErrInvalidFormat)
	}
	if f.StaleTimeout <= 0 {
		return fmt.Errorf("%w: stale timeout must be > 0", ErrInvalidFormat)
	}
	return nil
}

// MaxFrameLen is the size of the frame buffer: header, the largest payload
// and the checksum.
func (f Format) MaxFrameLen() int {
	return headerLen + 2*f.WireChannels + checksumLen
}

// FrameLen is the total wire length of a frame declaring count channels.
func FrameLen(count int) int {
	return headerLen + 2*count + checksumLen
}
