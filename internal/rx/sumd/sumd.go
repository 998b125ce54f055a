// Package sumd describes the Graupner SUMD serial receiver protocol.
//
// Frame layout, all multi-byte fields big-endian:
//
//	0xA8 | status | channel count | count x uint16 raw | CRC16
//
// Raw channel values are in 1/8 µs; the CRC16-CCITT (init 0) covers the
// sync byte through the last payload byte.
package sumd

import (
	"errors"
	"fmt"
	"time"

	"rcrx/internal/crc"
	"rcrx/internal/rx"
)

const (
	SyncByte = 0xA8

	StatusOK       = 0x01
	StatusFailsafe = 0x81

	// MaxChannels is the number of channels exposed to the flight code.
	MaxChannels = 18
	// WireChannels is the largest channel count a SUMD frame may declare.
	WireChannels = 32

	Baud = 115200

	// RefreshRate is the receiver frame period plus scheduling margin.
	RefreshRate = 11 * time.Millisecond

	// StaleTimeout bounds the silence inside one frame. A full 18 channel
	// frame takes ~3.5ms at 115200 baud with <100µs between bytes, and
	// receivers pause several milliseconds between frames.
	StaleTimeout = 3 * time.Millisecond
)

var ErrChannelCount = errors.New("sumd: invalid channel count")

// Classify accepts the live and failsafe status values; anything else
// (SUMH, telemetry-only frames) is not used for control.
func Classify(status byte) (rx.Status, bool) {
	switch status {
	case StatusOK:
		return rx.Complete, true
	case StatusFailsafe:
		return rx.CompleteWithFailsafe, true
	default:
		return rx.NothingNew, false
	}
}

func Micros(raw uint16) uint16 {
	return raw / 8
}

// Format returns the SUMD description. A non-positive staleTimeout selects
// StaleTimeout.
func Format(staleTimeout time.Duration) rx.Format {
	if staleTimeout <= 0 {
		staleTimeout = StaleTimeout
	}
	return rx.Format{
		Name:         "sumd",
		Sync:         SyncByte,
		WireChannels: WireChannels,
		Channels:     MaxChannels,
		Classify:     Classify,
		Micros:       Micros,
		StaleTimeout: staleTimeout,
		RefreshRate:  RefreshRate,
		Baud:         Baud,
	}
}

// Encode builds a SUMD frame from raw channel values.
func Encode(status byte, raw []uint16) ([]byte, error) {
	if len(raw) == 0 || len(raw) > WireChannels {
		return nil, fmt.Errorf("%w: %d (want 1..%d)", ErrChannelCount, len(raw), WireChannels)
	}
	out := make([]byte, 0, rx.FrameLen(len(raw)))
	out = append(out, SyncByte, status, byte(len(raw)))
	for _, v := range raw {
		out = append(out, byte(v>>8), byte(v))
	}
	c := crc.CCITTUpdate(0, out)
	return append(out, byte(c>>8), byte(c)), nil
}

// EncodeMicros is Encode with values given in microseconds.
func EncodeMicros(status byte, us []uint16) ([]byte, error) {
	raw := make([]uint16, len(us))
	for i, v := range us {
		raw[i] = v * 8
	}
	return Encode(status, raw)
}
