//go:build !linux || (!arm && !arm64)

package statusled

import "fmt"

func openLine(chip string, pin int) (lineDriver, error) {
	return nil, fmt.Errorf("statusled: gpio unsupported on this platform")
}
