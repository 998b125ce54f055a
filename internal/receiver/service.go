// Package receiver runs a frame decoder against a live byte source: one
// goroutine feeds bytes in as they arrive, another polls for completed
// frames at the protocol refresh rate and hands them to output sinks.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"rcrx/internal/capture"
	"rcrx/internal/logging"
	"rcrx/internal/metrics"
	"rcrx/internal/rx"
)

// Source is a serial-like byte stream. Read returns 0, nil when nothing
// arrived within its poll interval so the caller can check for shutdown.
type Source interface {
	Read(p []byte) (int, error)
	Close() error
}

// Opener attaches the byte source. It runs on Start.
type Opener func() (Source, error)

type Config struct {
	Format rx.Format
	// SourceName is reported in the snapshot ("serial /dev/ttyAMA0", "sim").
	SourceName string

	// RefreshInterval is the consumer poll period. Zero uses the format's
	// refresh rate.
	RefreshInterval time.Duration
	// FailsafeTimeout is how long without a valid frame before the link is
	// reported lost.
	FailsafeTimeout time.Duration
	// ErrorLogRate bounds protocol error log lines per second.
	ErrorLogRate float64

	// Capture, when set, receives every chunk read from the source. The
	// service owns it and closes it on Close.
	Capture *capture.Writer
}

type Service struct {
	cfg     Config
	open    Opener
	dec     *rx.Decoder
	log     *zap.Logger
	errLog  *logging.Limited
	metrics *metrics.RXMetrics
	sinks   []Sink
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	src    Source

	snapMu sync.Mutex
	last   atomic.Value // Snapshot
}

func New(cfg Config, open Opener, log *zap.Logger, m *metrics.RXMetrics, sinks ...Sink) (*Service, error) {
	if open == nil {
		return nil, errors.New("receiver: opener is nil")
	}
	dec, err := rx.NewDecoder(cfg.Format)
	if err != nil {
		return nil, err
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = cfg.Format.RefreshRate
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Millisecond
	}
	if cfg.FailsafeTimeout <= 0 {
		cfg.FailsafeTimeout = 500 * time.Millisecond
	}
	if cfg.ErrorLogRate <= 0 {
		cfg.ErrorLogRate = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("protocol", cfg.Format.Name))

	s := &Service{
		cfg:     cfg,
		open:    open,
		dec:     dec,
		log:     log,
		errLog:  logging.NewLimited(log, cfg.ErrorLogRate, 1),
		metrics: m,
		sinks:   sinks,
		now:     time.Now,
	}
	s.last.Store(Snapshot{
		Protocol: cfg.Format.Name,
		Source:   cfg.SourceName,
		Link:     LinkWaiting.String(),
		Channels: make([]uint16, cfg.Format.Channels),
	})
	return s, nil
}

// Decoder exposes the underlying decoder for read-only consumers.
func (s *Service) Decoder() *rx.Decoder { return s.dec }

// Start resets the decoder, attaches the byte source and starts the
// producer and consumer. attached reports whether the source opened; a
// second Start while running is a no-op.
func (s *Service) Start(ctx context.Context) (attached bool, err error) {
	if ctx == nil {
		return false, fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return true, nil
	}

	s.dec.Reset()
	src, err := s.open()
	if err != nil {
		s.setError(fmt.Sprintf("attach %s: %v", s.cfg.SourceName, err))
		s.log.Error("byte source attach failed", zap.String("source", s.cfg.SourceName), zap.Error(err))
		return false, err
	}
	s.src = src
	s.update(func(snap *Snapshot) {
		snap.Attached = true
		snap.LastError = ""
	})

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.produce(childCtx, src)
	}()
	go func() {
		defer s.wg.Done()
		s.consume(childCtx)
	}()

	s.log.Info("receiver started",
		zap.String("source", s.cfg.SourceName),
		zap.Duration("refresh", s.cfg.RefreshInterval),
		zap.Duration("stale_timeout", s.cfg.Format.StaleTimeout),
		zap.Duration("failsafe_timeout", s.cfg.FailsafeTimeout),
	)
	return true, nil
}

// Close stops both goroutines, then releases the source and capture file.
func (s *Service) Close() {
	s.mu.Lock()
	cancel := s.cancel
	src := s.src
	s.cancel = nil
	s.src = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	if src != nil {
		_ = src.Close()
	}
	if s.cfg.Capture != nil {
		if err := s.cfg.Capture.Close(); err != nil {
			s.log.Warn("capture close failed", zap.Error(err))
		}
	}
	for _, sk := range s.sinks {
		if c, ok := sk.(io.Closer); ok {
			_ = c.Close()
		}
	}
	s.update(func(snap *Snapshot) { snap.Attached = false })
}

func (s *Service) Snapshot() Snapshot {
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot).clone()
}

func (s *Service) update(fn func(*Snapshot)) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	cur := s.last.Load().(Snapshot).clone()
	fn(&cur)
	s.last.Store(cur)
}

func (s *Service) setError(msg string) {
	s.update(func(snap *Snapshot) { snap.LastError = msg })
}
