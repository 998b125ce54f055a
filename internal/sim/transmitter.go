package sim

import (
	"math"
	"time"

	"rcrx/internal/rx/sumd"
)

// Transmitter synthesizes the SUMD stream a Graupner receiver would emit
// while a pilot moves the sticks.
type Transmitter struct {
	Channels    int
	CenterUs    int
	AmplitudeUs int
	Period      time.Duration

	// FailsafeEvery opens a failsafe window of FailsafeFor at the start of
	// each FailsafeEvery interval. Zero disables it.
	FailsafeEvery time.Duration
	FailsafeFor   time.Duration
	FailsafeUs    int

	// CorruptEvery flips one payload byte in every Nth frame. Zero disables it.
	CorruptEvery int
}

func (tx Transmitter) channels() int {
	if tx.Channels <= 0 {
		return 16
	}
	return min(tx.Channels, sumd.WireChannels)
}

func (tx Transmitter) period() time.Duration {
	if tx.Period <= 0 {
		return 4 * time.Second
	}
	return tx.Period
}

// Micros returns the stick positions at now. Each channel runs the same
// sinusoid with its own phase so neighbouring channels never read alike.
func (tx Transmitter) Micros(now time.Time) []uint16 {
	center := tx.CenterUs
	if center <= 0 {
		center = 1500
	}
	amp := tx.AmplitudeUs
	if amp <= 0 {
		amp = 400
	}
	period := tx.period()
	phase := float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())

	n := tx.channels()
	out := make([]uint16, n)
	for i := range out {
		w := 2*math.Pi*phase + float64(i)*math.Pi/float64(n)
		out[i] = uint16(math.Round(float64(center) + float64(amp)*math.Sin(w)))
	}
	return out
}

// InFailsafe reports whether now falls in a failsafe window.
func (tx Transmitter) InFailsafe(now time.Time) bool {
	if tx.FailsafeEvery <= 0 || tx.FailsafeFor <= 0 {
		return false
	}
	return time.Duration(now.UnixNano()%tx.FailsafeEvery.Nanoseconds()) < tx.FailsafeFor
}

// Frame encodes the seq'th frame at now.
func (tx Transmitter) Frame(now time.Time, seq uint64) ([]byte, error) {
	status := byte(sumd.StatusOK)
	us := tx.Micros(now)
	if tx.InFailsafe(now) {
		status = sumd.StatusFailsafe
		hold := tx.FailsafeUs
		if hold <= 0 {
			hold = 1500
		}
		for i := range us {
			us[i] = uint16(hold)
		}
	}

	frame, err := sumd.EncodeMicros(status, us)
	if err != nil {
		return nil, err
	}
	if tx.CorruptEvery > 0 && seq%uint64(tx.CorruptEvery) == uint64(tx.CorruptEvery-1) {
		frame[3] ^= 0x5A
	}
	return frame, nil
}
