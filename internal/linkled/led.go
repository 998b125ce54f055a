// Package linkled drives a status LED from the receiver link state: lit
// while valid frames arrive, dark on failsafe or link loss.
package linkled

import (
	"fmt"

	"rcrx/internal/receiver"
)

type output interface {
	SetValue(v int) error
	Close() error
}

type Sink struct {
	out output
	lit bool
}

// Open requests lineName (e.g. "GPIO17") as an output, preferring chip.
func Open(chip, lineName string) (*Sink, error) {
	if lineName == "" {
		return nil, fmt.Errorf("linkled: line name is empty")
	}
	out, err := openLineFn(chip, lineName)
	if err != nil {
		return nil, err
	}
	return &Sink{out: out}, nil
}

func (s *Sink) Name() string { return "led" }

func (s *Sink) Deliver(u receiver.Update) error {
	want := u.Link == receiver.LinkOK
	if want == s.lit {
		return nil
	}
	v := 0
	if want {
		v = 1
	}
	if err := s.out.SetValue(v); err != nil {
		return err
	}
	s.lit = want
	return nil
}

// Close turns the LED off and releases the line.
func (s *Sink) Close() error {
	if s.out == nil {
		return nil
	}
	_ = s.out.SetValue(0)
	err := s.out.Close()
	s.out = nil
	return err
}
