package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rcrx/internal/rx"
)

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Frame results for rx_frames_total.
const (
	ResultOK            = "ok"
	ResultFailsafe      = "failsafe"
	ResultCRCError      = "crc_error"
	ResultLengthError   = "length_error"
	ResultUnknownStatus = "unknown_status"
)

type RXMetrics struct {
	Bytes         prometheus.Counter
	UnsyncedBytes prometheus.Counter
	Frames        *prometheus.CounterVec // labels: result
	StaleResets   prometheus.Counter
	LinkUp        prometheus.Gauge
	LinkLost      prometheus.Counter
	SinkErrors    *prometheus.CounterVec // labels: sink
}

func NewRXMetrics(reg prometheus.Registerer) *RXMetrics {
	m := &RXMetrics{
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rx_bytes_total",
			Help: "Bytes received from the receiver link.",
		}),
		UnsyncedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rx_unsynced_bytes_total",
			Help: "Bytes dropped while waiting for a sync byte.",
		}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rx_frames_total",
			Help: "Completed frames by result.",
		}, []string{"result"}),
		StaleResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rx_stale_resets_total",
			Help: "Partial frames dropped after the link went quiet mid-frame.",
		}),
		LinkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rx_link_up",
			Help: "1 while valid non-failsafe frames are arriving.",
		}),
		LinkLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rx_link_lost_total",
			Help: "Transitions into link lost.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rx_sink_errors_total",
			Help: "Errors delivering frames to output sinks.",
		}, []string{"sink"}),
	}
	reg.MustRegister(m.Bytes, m.UnsyncedBytes, m.Frames, m.StaleResets, m.LinkUp, m.LinkLost, m.SinkErrors)
	return m
}

// Observe adds a counter delta taken from the decoder.
func (m *RXMetrics) Observe(d rx.Stats) {
	m.Bytes.Add(float64(d.Bytes))
	m.UnsyncedBytes.Add(float64(d.Unsynced))
	m.Frames.WithLabelValues(ResultOK).Add(float64(d.Frames - d.FailsafeFrames))
	m.Frames.WithLabelValues(ResultFailsafe).Add(float64(d.FailsafeFrames))
	m.Frames.WithLabelValues(ResultCRCError).Add(float64(d.CRCErrors))
	m.Frames.WithLabelValues(ResultLengthError).Add(float64(d.LengthErrors))
	m.Frames.WithLabelValues(ResultUnknownStatus).Add(float64(d.UnknownStatus))
	m.StaleResets.Add(float64(d.StaleResets))
}

func (m *RXMetrics) SetLinkUp(up bool) {
	if up {
		m.LinkUp.Set(1)
		return
	}
	m.LinkUp.Set(0)
}
