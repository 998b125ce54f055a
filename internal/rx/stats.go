package rx

import "sync/atomic"

// Stats are cumulative decoder counters.
type Stats struct {
	Bytes          uint64 `json:"bytes"`
	Unsynced       uint64 `json:"unsynced_bytes"`
	Frames         uint64 `json:"frames"`
	FailsafeFrames uint64 `json:"failsafe_frames"`
	CRCErrors      uint64 `json:"crc_errors"`
	LengthErrors   uint64 `json:"length_errors"`
	UnknownStatus  uint64 `json:"unknown_status"`
	StaleResets    uint64 `json:"stale_resets"`
}

// Sub returns the per-field difference s - prev.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		Bytes:          s.Bytes - prev.Bytes,
		Unsynced:       s.Unsynced - prev.Unsynced,
		Frames:         s.Frames - prev.Frames,
		FailsafeFrames: s.FailsafeFrames - prev.FailsafeFrames,
		CRCErrors:      s.CRCErrors - prev.CRCErrors,
		LengthErrors:   s.LengthErrors - prev.LengthErrors,
		UnknownStatus:  s.UnknownStatus - prev.UnknownStatus,
		StaleResets:    s.StaleResets - prev.StaleResets,
	}
}

type counters struct {
	bytes          atomic.Uint64
	unsynced       atomic.Uint64
	frames         atomic.Uint64
	failsafeFrames atomic.Uint64
	crcErrors      atomic.Uint64
	lengthErrors   atomic.Uint64
	unknownStatus  atomic.Uint64
	staleResets    atomic.Uint64
}

func (c *counters) load() Stats {
	return Stats{
		Bytes:          c.bytes.Load(),
		Unsynced:       c.unsynced.Load(),
		Frames:         c.frames.Load(),
		FailsafeFrames: c.failsafeFrames.Load(),
		CRCErrors:      c.crcErrors.Load(),
		LengthErrors:   c.lengthErrors.Load(),
		UnknownStatus:  c.unknownStatus.Load(),
		StaleResets:    c.staleResets.Load(),
	}
}

func (c *counters) reset() {
	c.bytes.Store(0)
	c.unsynced.Store(0)
	c.frames.Store(0)
	c.failsafeFrames.Store(0)
	c.crcErrors.Store(0)
	c.lengthErrors.Store(0)
	c.unknownStatus.Store(0)
	c.staleResets.Store(0)
}
