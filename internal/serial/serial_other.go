//go:build !linux

package serial

import (
	"fmt"

	bugst "go.bug.st/serial"
)

type bugstPort struct {
	bugst.Port
}

func openPort(path string, baud int) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	p, err := bugst.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}
	if err := p.SetReadTimeout(ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serial: set read timeout %s: %w", path, err)
	}
	_ = p.ResetInputBuffer()
	return bugstPort{Port: p}, nil
}
