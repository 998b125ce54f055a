//go:build !linux || (!arm && !arm64)

package linkled

import "fmt"

func openLine(chip, lineName string) (output, error) {
	return nil, fmt.Errorf("linkled: gpio unsupported on this platform")
}

var openLineFn = openLine
