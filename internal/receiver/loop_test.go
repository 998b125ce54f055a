package receiver

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcrx/internal/metrics"
	"rcrx/internal/rx/sumd"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// tickHarness drives tick with a manual clock; no goroutines involved.
type tickHarness struct {
	t    *testing.T
	s    *Service
	c    consumer
	sink *recordingSink
	m    *metrics.RXMetrics
	now  time.Time
}

func newTickHarness(t *testing.T) *tickHarness {
	reg := prometheus.NewRegistry()
	m := metrics.NewRXMetrics(reg)
	sink := &recordingSink{}
	s, err := New(Config{Format: sumd.Format(0), FailsafeTimeout: 100 * time.Millisecond},
		func() (Source, error) { return newChanSource(), nil }, nil, m, sink)
	require.NoError(t, err)
	return &tickHarness{t: t, s: s, c: consumer{link: LinkWaiting}, sink: sink, m: m, now: t0}
}

func (h *tickHarness) frame(status byte, us ...uint16) {
	h.s.dec.Feed(mustFrame(h.t, status, us...), h.now)
}

func (h *tickHarness) tick(d time.Duration) LinkState {
	h.now = h.now.Add(d)
	h.s.tick(&h.c, h.now)
	return h.c.link
}

func TestTick_WaitingUntilFirstFrame(t *testing.T) {
	h := newTickHarness(t)
	for i := 0; i < 100; i++ {
		assert.Equal(t, LinkWaiting, h.tick(sumd.RefreshRate))
	}
	assert.Empty(t, h.sink.all())
	assert.Equal(t, "waiting", h.s.Snapshot().Link)
}

func TestTick_LinkLostAfterTimeout(t *testing.T) {
	h := newTickHarness(t)
	h.frame(sumd.StatusOK, 1500, 1500)
	assert.Equal(t, LinkOK, h.tick(sumd.RefreshRate))

	assert.Equal(t, LinkOK, h.tick(100*time.Millisecond))
	assert.Equal(t, LinkLost, h.tick(time.Millisecond))
	assert.Equal(t, LinkLost, h.tick(time.Second))

	ups := h.sink.all()
	require.Len(t, ups, 2, "one frame, one transition")
	assert.Equal(t, LinkLost, ups[1].Link)
	assert.Nil(t, ups[1].Channels)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.LinkLost))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.m.LinkUp))

	// Recovery.
	h.frame(sumd.StatusOK, 1600)
	assert.Equal(t, LinkOK, h.tick(sumd.RefreshRate))
	assert.Equal(t, uint16(1600), h.s.Snapshot().Channels[0])
	assert.Equal(t, uint16(1500), h.s.Snapshot().Channels[1])
}

func TestTick_ReceiverFailsafeIsNotLinkLoss(t *testing.T) {
	h := newTickHarness(t)
	h.frame(sumd.StatusFailsafe, 1000, 1000)
	assert.Equal(t, LinkFailsafe, h.tick(sumd.RefreshRate))

	snap := h.s.Snapshot()
	assert.True(t, snap.Failsafe)
	assert.False(t, snap.Healthy())
	assert.Equal(t, byte(sumd.StatusFailsafe), snap.StatusByte)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.m.Frames.WithLabelValues(metrics.ResultFailsafe)))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.m.LinkLost))
}

func TestTick_EachFrameDeliveredOnce(t *testing.T) {
	h := newTickHarness(t)
	h.frame(sumd.StatusOK, 1500)
	h.tick(sumd.RefreshRate)
	h.tick(sumd.RefreshRate)
	h.tick(sumd.RefreshRate)
	assert.Len(t, h.sink.all(), 1)
}

func TestTick_StatsDeltaFeedsMetrics(t *testing.T) {
	h := newTickHarness(t)
	bad := mustFrame(t, sumd.StatusOK, 1500)
	bad[len(bad)-1] ^= 0xFF
	h.s.dec.Feed(bad, h.now)
	h.tick(sumd.RefreshRate)
	h.s.dec.Feed(bad, h.now)
	h.tick(sumd.RefreshRate)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.m.Frames.WithLabelValues(metrics.ResultCRCError)))
	assert.Equal(t, float64(2*len(bad)), testutil.ToFloat64(h.m.Bytes))
	assert.Equal(t, uint64(2), h.s.Snapshot().Stats.CRCErrors)
}
