package receiver

import "time"

// Update is what sinks receive: on every completed frame, and on link state
// changes that happen without a frame (link lost).
type Update struct {
	Link     LinkState
	Seq      uint64
	Failsafe bool
	Channels []uint16 // microseconds; shared with other sinks, read-only
	At       time.Time
}

// Sink consumes updates on the consumer goroutine. Deliver must not block
// for longer than a refresh interval. Sinks implementing io.Closer are
// closed with the service.
type Sink interface {
	Name() string
	Deliver(u Update) error
}
