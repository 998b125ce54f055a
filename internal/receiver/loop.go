package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"rcrx/internal/rx"
)

const readBufSize = 256

// produce is the byte path: every chunk is timestamped on arrival and fed to
// the decoder before the next read.
func (s *Service) produce(ctx context.Context, src Source) {
	buf := make([]byte, readBufSize)
	capw := s.cfg.Capture
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := src.Read(buf)
		if n > 0 {
			at := s.now()
			s.dec.Feed(buf[:n], at)
			if capw != nil {
				if werr := capw.WriteChunk(at, buf[:n]); werr != nil {
					s.log.Error("capture write failed; capture disabled", zap.Error(werr))
					capw = nil
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				s.log.Info("byte source ended", zap.String("source", s.cfg.SourceName))
				s.setError("byte source ended")
			} else {
				s.log.Error("byte source read failed", zap.String("source", s.cfg.SourceName), zap.Error(err))
				s.setError(fmt.Sprintf("read: %v", err))
			}
			s.update(func(snap *Snapshot) { snap.Attached = false })
			return
		}
	}
}

// consume stands in for the flight-control scheduler: it polls the decoder
// once per refresh interval.
func (s *Service) consume(ctx context.Context) {
	t := time.NewTicker(s.cfg.RefreshInterval)
	defer t.Stop()

	c := consumer{link: LinkWaiting}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(&c, s.now())
		}
	}
}

// consumer is state owned by the consumer goroutine.
type consumer struct {
	link      LinkState
	lastFrame time.Time
	prevStats rx.Stats
}

func (s *Service) tick(c *consumer, now time.Time) {
	status := s.dec.CheckFrameStatus(now)

	var (
		frame   rx.Frame
		haveNew bool
		prev    = c.link
	)
	switch status {
	case rx.Complete, rx.CompleteWithFailsafe:
		frame = s.dec.Frame()
		haveNew = true
		c.lastFrame = now
		if frame.Failsafe {
			c.link = LinkFailsafe
		} else {
			c.link = LinkOK
		}
	default:
		if c.link != LinkWaiting && c.link != LinkLost && now.Sub(c.lastFrame) > s.cfg.FailsafeTimeout {
			c.link = LinkLost
		}
	}

	stats := s.dec.Stats()
	delta := stats.Sub(c.prevStats)
	c.prevStats = stats
	s.observe(delta, prev, c.link)

	if haveNew {
		s.deliver(Update{Link: c.link, Seq: frame.Seq, Failsafe: frame.Failsafe, Channels: frame.Micros, At: frame.At})
	} else if c.link != prev {
		s.deliver(Update{Link: c.link, At: now})
	}

	s.update(func(snap *Snapshot) {
		snap.Link = c.link.String()
		snap.Stats = stats
		if haveNew {
			snap.Seq = frame.Seq
			snap.Failsafe = frame.Failsafe
			snap.StatusByte = frame.StatusByte
			snap.Declared = frame.Declared
			snap.Channels = frame.Micros
			snap.LastFrame = frame.At
		}
		if !c.lastFrame.IsZero() {
			snap.FrameAgeMS = now.Sub(c.lastFrame).Milliseconds()
		}
	})
}

func (s *Service) observe(delta rx.Stats, prev, link LinkState) {
	if s.metrics != nil {
		s.metrics.Observe(delta)
		s.metrics.SetLinkUp(link == LinkOK)
		if link == LinkLost && prev != LinkLost {
			s.metrics.LinkLost.Inc()
		}
	}

	if delta.CRCErrors > 0 || delta.LengthErrors > 0 || delta.UnknownStatus > 0 {
		s.errLog.Warn("frames rejected",
			zap.Uint64("crc_errors", delta.CRCErrors),
			zap.Uint64("length_errors", delta.LengthErrors),
			zap.Uint64("unknown_status", delta.UnknownStatus),
		)
	}
	if link != prev {
		s.log.Info("link state changed", zap.Stringer("from", prev), zap.Stringer("to", link))
	}
}

func (s *Service) deliver(u Update) {
	for _, sk := range s.sinks {
		if err := sk.Deliver(u); err != nil {
			if s.metrics != nil {
				s.metrics.SinkErrors.WithLabelValues(sk.Name()).Inc()
			}
			s.errLog.Warn("sink delivery failed", zap.String("sink", sk.Name()), zap.Error(err))
		}
	}
}
