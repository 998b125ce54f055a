// Package serial opens a UART as a raw, receive-only byte source.
package serial

import (
	"fmt"
	"os"
	"time"
)

// ReadTimeout is how long a Read waits for the first byte before returning
// 0, nil so callers can observe cancellation.
const ReadTimeout = 100 * time.Millisecond

// Port is an open serial device. Read returns 0, nil when ReadTimeout
// passes without data.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// Open configures path as raw 8N1 at baud.
func Open(path string, baud int) (Port, error) {
	if path == "" {
		return nil, fmt.Errorf("serial: empty device path")
	}
	return openPort(path, baud)
}

// DefaultCandidates are probed in order by AutoDetect: the Pi's primary
// UART aliases first, then USB adapters.
func DefaultCandidates() []string {
	out := []string{"/dev/serial0", "/dev/ttyAMA0", "/dev/ttyS0"}
	for i := 0; i < 10; i++ {
		out = append(out, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for i := 0; i < 10; i++ {
		out = append(out, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	return out
}

// AutoDetect returns the first candidate that exists, or "".
func AutoDetect(candidates []string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
