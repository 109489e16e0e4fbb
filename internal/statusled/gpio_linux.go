//go:build linux && (arm || arm64)

package statusled

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openLine requests GPIO<pin> as an output, initially off. When chip is
// empty every /dev/gpiochip* is tried.
func openLine(chip string, pin int) (lineDriver, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("statusled: invalid gpio pin %d", pin)
	}
	lineName := fmt.Sprintf("GPIO%d", pin)

	candidates := []string{chip}
	if chip == "" {
		candidates = []string{"/dev/gpiochip0", "/dev/gpiochip4"}
		entries, _ := os.ReadDir("/dev")
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "gpiochip") {
				candidates = append(candidates, filepath.Join("/dev", e.Name()))
			}
		}
	}

	for _, path := range candidates {
		c, err := gpiocdev.NewChip(path)
		if err != nil {
			continue
		}
		offset, err := c.FindLine(lineName)
		if err != nil {
			_ = c.Close()
			continue
		}
		line, err := c.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("simlink-status"))
		if err != nil {
			_ = c.Close()
			continue
		}
		return &gpiodLine{chip: c, line: line}, nil
	}
	return nil, fmt.Errorf("statusled: gpio line %q not found (or busy)", lineName)
}

type gpiodLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLine) SetValue(v int) error {
	return g.line.SetValue(v)
}

func (g *gpiodLine) Close() error {
	err := g.line.Close()
	_ = g.chip.Close()
	return err
}
