package rx

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
	"time"

	"rcrx/internal/crc"
)

var ErrChannelRange = errors.New("rx: channel index out of range")

// Decoder assembles, verifies and publishes frames for one receiver.
type Decoder struct {
	format Format

	// Producer side. Only OnByte touches these.
	buf    []byte
	n      int
	need   int
	crc    uint16
	gen    uint32
	lastAt time.Time
	pos    cursor

	// Shared.
	cursor   atomic.Uint64
	lastByte atomic.Int64 // UnixNano of the last accepted byte
	latest   atomic.Pointer[Frame]
	stats    counters

	// Consumer side.
	seen uint64
}

func NewDecoder(format Format) (*Decoder, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	d := &Decoder{
		format: format,
		buf:    make([]byte, format.MaxFrameLen()),
	}
	d.Reset()
	return d, nil
}

// Reset returns the decoder to its initial state: no frame in progress, an
// empty snapshot and zeroed counters. It must not run concurrently with
// OnByte or CheckFrameStatus.
func (d *Decoder) Reset() {
	d.n = 0
	d.need = 0
	d.crc = 0
	d.gen = 0
	d.lastAt = time.Time{}
	d.pos = makeCursor(0, 0, AwaitingSync)
	d.cursor.Store(uint64(d.pos))
	d.lastByte.Store(0)
	d.latest.Store(&Frame{
		Raw:    make([]uint16, d.format.Channels),
		Micros: make([]uint16, d.format.Channels),
	})
	d.stats.reset()
	d.seen = 0
}

func (d *Decoder) Format() Format { return d.format }

// State reports the assembler position as last committed by the producer or
// the watchdog.
func (d *Decoder) State() State {
	return cursor(d.cursor.Load()).state()
}

func (d *Decoder) Stats() Stats { return d.stats.load() }

// Feed passes every byte of p to OnByte with the same arrival time, which is
// what a UART read of several buffered bytes provides.
func (d *Decoder) Feed(p []byte, at time.Time) {
	for _, b := range p {
		d.OnByte(b, at)
	}
}

// OnByte advances the frame assembler by one received byte. It never
// blocks; the only allocation is the snapshot of a verified frame.
func (d *Decoder) OnByte(b byte, at time.Time) {
	d.stats.bytes.Add(1)

	for {
		cur := cursor(d.cursor.Load())
		if cur != d.pos {
			// The watchdog dropped the partial frame.
			d.pos = cur
			d.n = 0
		}

		st := d.pos.state()
		if st != AwaitingSync && at.Sub(d.lastAt) > d.format.StaleTimeout {
			d.stats.staleResets.Add(1)
			st = AwaitingSync
			d.n = 0
		}
		d.lastAt = at
		d.lastByte.Store(at.UnixNano())

		next, done := d.advance(st, b)
		pos := makeCursor(d.gen, d.n, next)
		if !d.cursor.CompareAndSwap(uint64(d.pos), uint64(pos)) {
			continue
		}
		d.pos = pos
		if done {
			d.publish(at)
		}
		return
	}
}

func (d *Decoder) advance(st State, b byte) (next State, done bool) {
	switch st {
	case AwaitingSync:
		if b != d.format.Sync {
			d.stats.unsynced.Add(1)
			return AwaitingSync, false
		}
		d.gen++
		d.buf[0] = b
		d.n = 1
		d.crc = crc.CCITT(0, b)
		return ReadingStatus, false

	case ReadingStatus:
		d.buf[1] = b
		d.n = 2
		d.crc = crc.CCITT(d.crc, b)
		return ReadingLength, false

	case ReadingLength:
		count := int(b)
		if count == 0 || count > d.format.WireChannels {
			d.stats.lengthErrors.Add(1)
			d.n = 0
			return AwaitingSync, false
		}
		d.buf[2] = b
		d.n = 3
		d.need = FrameLen(count)
		d.crc = crc.CCITT(d.crc, b)
		return ReadingPayload, false

	case ReadingPayload:
		d.buf[d.n] = b
		d.n++
		d.crc = crc.CCITT(d.crc, b)
		if d.n == d.need-checksumLen {
			return ReadingChecksum, false
		}
		return ReadingPayload, false

	case ReadingChecksum:
		d.buf[d.n] = b
		d.n++
		if d.n < d.need {
			return ReadingChecksum, false
		}
		d.n = 0
		got := binary.BigEndian.Uint16(d.buf[d.need-checksumLen : d.need])
		if got != d.crc {
			d.stats.crcErrors.Add(1)
			return AwaitingSync, false
		}
		if _, ok := d.format.Classify(d.buf[1]); !ok {
			d.stats.unknownStatus.Add(1)
			return AwaitingSync, false
		}
		return AwaitingSync, true

	default:
		d.n = 0
		return AwaitingSync, false
	}
}

// publish decodes the verified frame in buf and replaces the snapshot.
func (d *Decoder) publish(at time.Time) {
	prev := d.latest.Load()
	status, _ := d.format.Classify(d.buf[1])
	declared := int(d.buf[2])

	f := &Frame{
		Seq:        prev.Seq + 1,
		Status:     status,
		StatusByte: d.buf[1],
		Valid:      true,
		Failsafe:   status == CompleteWithFailsafe,
		Declared:   declared,
		Raw:        append([]uint16(nil), prev.Raw...),
		Micros:     append([]uint16(nil), prev.Micros...),
		At:         at,
	}
	n := min(declared, d.format.Channels)
	for i := 0; i < n; i++ {
		raw := binary.BigEndian.Uint16(d.buf[headerLen+2*i:])
		f.Raw[i] = raw
		f.Micros[i] = d.format.Micros(raw)
	}

	d.stats.frames.Add(1)
	if f.Failsafe {
		d.stats.failsafeFrames.Add(1)
	}
	d.latest.Store(f)
}

// CheckFrameStatus reports a frame completed since the previous call, once.
// When there is none and a partial frame has been idle for longer than the
// format's stale timeout, the partial frame is dropped so the next sync byte
// starts a clean frame.
func (d *Decoder) CheckFrameStatus(now time.Time) Status {
	if f := d.latest.Load(); f.Seq != d.seen {
		d.seen = f.Seq
		return f.Status
	}

	cur := d.cursor.Load()
	if cursor(cur).state() == AwaitingSync {
		return NothingNew
	}
	if now.UnixNano()-d.lastByte.Load() <= int64(d.format.StaleTimeout) {
		return NothingNew
	}
	if d.cursor.CompareAndSwap(cur, uint64(cursor(cur).synced())) {
		d.stats.staleResets.Add(1)
	}
	return NothingNew
}

// ReadChannel returns channel i of the last published frame in
// microseconds. An index outside [0, Format.Channels) reads as 0.
func (d *Decoder) ReadChannel(i int) uint16 {
	f := d.latest.Load()
	if i < 0 || i >= len(f.Micros) {
		return 0
	}
	return f.Micros[i]
}

// Channel is ReadChannel with an explicit range error.
func (d *Decoder) Channel(i int) (uint16, error) {
	f := d.latest.Load()
	if i < 0 || i >= len(f.Micros) {
		return 0, ErrChannelRange
	}
	return f.Micros[i], nil
}

// Frame returns a copy of the last published snapshot.
func (d *Decoder) Frame() Frame {
	return d.latest.Load().clone()
}
