package receiver

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rcrx/internal/capture"
	"rcrx/internal/metrics"
	"rcrx/internal/rx"
	"rcrx/internal/rx/sumd"
)

// chanSource hands out queued chunks; a closed channel reads as io.EOF.
type chanSource struct {
	ch     chan []byte
	mu     sync.Mutex
	closed bool
}

func newChanSource() *chanSource { return &chanSource{ch: make(chan []byte, 64)} }

func (c *chanSource) Read(p []byte) (int, error) {
	select {
	case b, ok := <-c.ch:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, b), nil
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (c *chanSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *chanSource) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type recordingSink struct {
	mu      sync.Mutex
	updates []Update
	err     error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Deliver(u Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return r.err
}

func (r *recordingSink) all() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func (r *recordingSink) sawLink(l LinkState) bool {
	for _, u := range r.all() {
		if u.Link == l {
			return true
		}
	}
	return false
}

func mustFrame(t *testing.T, status byte, us ...uint16) []byte {
	t.Helper()
	b, err := sumd.EncodeMicros(status, us)
	require.NoError(t, err)
	return b
}

func newTestService(t *testing.T, src Source, cfg Config, sinks ...Sink) *Service {
	t.Helper()
	if cfg.Format.Name == "" {
		cfg.Format = sumd.Format(0)
	}
	cfg.SourceName = "test"
	s, err := New(cfg, func() (Source, error) { return src, nil }, zap.NewNop(), nil, sinks...)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsBadInput(t *testing.T) {
	_, err := New(Config{Format: sumd.Format(0)}, nil, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{}, func() (Source, error) { return nil, nil }, nil, nil)
	assert.ErrorIs(t, err, rx.ErrInvalidFormat)
}

func TestService_DeliversFrames(t *testing.T) {
	src := newChanSource()
	sink := &recordingSink{}
	s := newTestService(t, src, Config{RefreshInterval: 2 * time.Millisecond}, sink)

	attached, err := s.Start(context.Background())
	require.NoError(t, err)
	require.True(t, attached)
	defer s.Close()

	src.ch <- mustFrame(t, sumd.StatusOK, 1100, 1200, 1300)

	require.Eventually(t, func() bool { return len(sink.all()) > 0 }, 2*time.Second, 5*time.Millisecond)
	u := sink.all()[0]
	assert.Equal(t, LinkOK, u.Link)
	assert.Equal(t, uint64(1), u.Seq)
	assert.Equal(t, []uint16{1100, 1200, 1300}, u.Channels[:3])

	snap := s.Snapshot()
	assert.True(t, snap.Attached)
	assert.True(t, snap.Healthy())
	assert.Equal(t, "sumd", snap.Protocol)
	assert.Equal(t, 3, snap.Declared)
	assert.Len(t, snap.Channels, sumd.MaxChannels)
	assert.Equal(t, uint16(1300), snap.Channels[2])
}

func TestService_StartTwiceIsNoop(t *testing.T) {
	opens := 0
	src := newChanSource()
	s, err := New(Config{Format: sumd.Format(0)}, func() (Source, error) {
		opens++
		return src, nil
	}, nil, nil)
	require.NoError(t, err)

	_, err = s.Start(context.Background())
	require.NoError(t, err)
	attached, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, attached)
	assert.Equal(t, 1, opens)

	s.Close()
	assert.True(t, src.isClosed())
	assert.False(t, s.Snapshot().Attached)
}

func TestService_AttachFailure(t *testing.T) {
	boom := errors.New("no such device")
	s, err := New(Config{Format: sumd.Format(0), SourceName: "serial /dev/ttyAMA0"},
		func() (Source, error) { return nil, boom }, nil, nil)
	require.NoError(t, err)

	attached, err := s.Start(context.Background())
	assert.False(t, attached)
	assert.ErrorIs(t, err, boom)

	snap := s.Snapshot()
	assert.False(t, snap.Attached)
	assert.Contains(t, snap.LastError, "no such device")
	s.Close()
}

func TestService_SourceEOF(t *testing.T) {
	src := newChanSource()
	s := newTestService(t, src, Config{})
	_, err := s.Start(context.Background())
	require.NoError(t, err)
	defer s.Close()

	close(src.ch)
	require.Eventually(t, func() bool { return s.Snapshot().LastError == "byte source ended" }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s.Snapshot().Attached)
}

func TestService_CapturesChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rx.log")
	w, err := capture.CreateWriter(path)
	require.NoError(t, err)

	src := newChanSource()
	s := newTestService(t, src, Config{Capture: w})
	_, err = s.Start(context.Background())
	require.NoError(t, err)

	frame := mustFrame(t, sumd.StatusOK, 1500, 1500)
	src.ch <- frame[:4]
	src.ch <- frame[4:]
	close(src.ch)
	require.Eventually(t, func() bool { return !s.Snapshot().Attached }, 2*time.Second, 5*time.Millisecond)
	s.Close()

	recs, session, err := capture.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, w.Session(), session)

	var got []byte
	for _, r := range recs {
		got = append(got, r.Data...)
	}
	assert.Equal(t, frame, got)
}

func TestService_SinkErrorsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRXMetrics(reg)
	sink := &recordingSink{err: errors.New("unreachable")}
	s, err := New(Config{Format: sumd.Format(0)}, func() (Source, error) { return newChanSource(), nil }, nil, m, sink)
	require.NoError(t, err)

	s.dec.Feed(mustFrame(t, sumd.StatusOK, 1500), t0)
	c := consumer{link: LinkWaiting}
	s.tick(&c, t0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors.WithLabelValues("recording")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkUp))
}
