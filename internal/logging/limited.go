package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limited rate-limits a logger. A noisy serial link can produce hundreds of
// CRC errors per second; Limited keeps one line per token and reports how
// many were suppressed in between.
type Limited struct {
	log        *zap.Logger
	lim        *rate.Limiter
	suppressed atomic.Uint64
}

// NewLimited allows perSecond lines per second with a burst of burst.
func NewLimited(log *zap.Logger, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{log: log, lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *Limited) Warn(msg string, fields ...zap.Field) {
	if !l.lim.Allow() {
		l.suppressed.Add(1)
		return
	}
	if n := l.suppressed.Swap(0); n > 0 {
		fields = append(fields, zap.Uint64("suppressed", n))
	}
	l.log.Warn(msg, fields...)
}

// Suppressed returns the number of lines dropped since the last one logged.
func (l *Limited) Suppressed() uint64 { return l.suppressed.Load() }
