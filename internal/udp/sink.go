package udp

import (
	"encoding/json"
	"time"

	"golang.org/x/time/rate"

	"rcrx/internal/receiver"
)

// Datagram is the JSON payload sent per decoded frame.
type Datagram struct {
	Seq        uint64   `json:"seq"`
	Link       string   `json:"link"`
	Failsafe   bool     `json:"failsafe"`
	ChannelsUs []uint16 `json:"channels_us,omitempty"`
	TimeUnixMs int64    `json:"t_ms"`
}

// FrameSink forwards receiver updates as JSON datagrams. Frames are thinned
// to at most one per interval; link state changes always go out.
type FrameSink struct {
	b        *Broadcaster
	lim      *rate.Limiter
	lastLink receiver.LinkState
}

func NewFrameSink(b *Broadcaster, interval time.Duration) *FrameSink {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &FrameSink{b: b, lim: rate.NewLimiter(limit, 1), lastLink: receiver.LinkWaiting}
}

func (s *FrameSink) Name() string { return "udp" }

func (s *FrameSink) Deliver(u receiver.Update) error {
	changed := u.Link != s.lastLink
	s.lastLink = u.Link
	allowed := s.lim.AllowN(u.At, 1)
	if !changed && !allowed {
		return nil
	}
	payload, err := json.Marshal(Datagram{
		Seq:        u.Seq,
		Link:       u.Link.String(),
		Failsafe:   u.Failsafe,
		ChannelsUs: u.Channels,
		TimeUnixMs: u.At.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return s.b.Send(payload)
}

func (s *FrameSink) Close() error { return s.b.Close() }
