package capture

import (
	"errors"
	"io"
	"sync"
	"time"
)

var errStopped = errors.New("capture: source closed")

// Source plays a capture back as a serial-like byte stream. Read returns
// 0, nil when nothing arrives within the poll interval and io.EOF once a
// non-looping replay is exhausted.
type Source struct {
	poll    time.Duration
	chunks  chan []byte
	stop    chan struct{}
	done    chan struct{}
	pending []byte
	err     error

	closeOnce sync.Once
}

// NewSource starts playback immediately in its own goroutine.
func NewSource(records []Record, speed float64, loop bool, sleeper Sleeper, poll time.Duration) (*Source, error) {
	if speed <= 0 {
		return nil, errors.New("capture: speed must be > 0")
	}
	hasData := false
	for _, r := range records {
		if !r.IsStart() {
			hasData = true
			break
		}
	}
	if !hasData {
		return nil, errors.New("capture: no data records")
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	s := &Source{
		poll:   poll,
		chunks: make(chan []byte),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		err := Play(records, speed, loop, sleeper, func(data []byte) error {
			select {
			case s.chunks <- data:
				return nil
			case <-s.stop:
				return errStopped
			}
		})
		if err != nil && !errors.Is(err, errStopped) {
			s.err = err
		}
	}()
	return s, nil
}

func (s *Source) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		t := time.NewTimer(s.poll)
		defer t.Stop()
		select {
		case c := <-s.chunks:
			s.pending = c
		case <-s.done:
			if s.err != nil {
				return 0, s.err
			}
			return 0, io.EOF
		case <-t.C:
			return 0, nil
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Source) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
