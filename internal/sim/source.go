package sim

import (
	"sync"
	"time"

	"rcrx/internal/rx/sumd"
)

// Source emits one Transmitter frame per interval, paced by the wall clock,
// and satisfies the receiver's byte source contract.
type Source struct {
	tx       Transmitter
	interval time.Duration
	poll     time.Duration

	next    time.Time
	seq     uint64
	pending []byte

	stop      chan struct{}
	closeOnce sync.Once
}

func NewSource(tx Transmitter, interval time.Duration) *Source {
	if interval <= 0 {
		interval = sumd.RefreshRate
	}
	return &Source{
		tx:       tx,
		interval: interval,
		poll:     100 * time.Millisecond,
		next:     time.Now(),
		stop:     make(chan struct{}),
	}
}

func (s *Source) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		wait := time.Until(s.next)
		if wait > s.poll {
			wait = s.poll
		}
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-s.stop:
				t.Stop()
				return 0, nil
			case <-t.C:
			}
		}
		now := time.Now()
		if now.Before(s.next) {
			return 0, nil
		}
		frame, err := s.tx.Frame(now, s.seq)
		if err != nil {
			return 0, err
		}
		s.seq++
		s.next = s.next.Add(s.interval)
		if s.next.Before(now) {
			// Fell behind; do not burst to catch up.
			s.next = now.Add(s.interval)
		}
		s.pending = frame
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Source) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}
