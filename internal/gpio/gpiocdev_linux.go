//go:build linux

package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// Open requests the line described by req as a digital output through
// the Linux GPIO character device, initially driven low.
//
// When req.Chip is empty every /dev/gpiochip* is scanned for a line
// matching req.Line; the first chip that can satisfy the request wins.
func Open(req Request) (Output, error) {
	consumer := req.Consumer
	if consumer == "" {
		consumer = "pulseline"
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumer),
	}
	if req.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	for _, chipPath := range candidateChips(req.Chip) {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}

		offset := req.Offset
		if req.Line != "" {
			offset, err = chip.FindLine(req.Line)
			if err != nil {
				_ = chip.Close()
				continue
			}
		}

		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &cdevOutput{chip: chip, line: line}, nil
	}

	return nil, fmt.Errorf("%w: chip=%q line=%q offset=%d",
		ErrLineUnavailable, req.Chip, req.Line, req.Offset)
}

// candidateChips returns the chip device paths to try, in order.
func candidateChips(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}

	var chips []string
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chips = append(chips, filepath.Join("/dev", e.Name()))
		}
	}
	return chips
}

// cdevOutput drives one requested line via go-gpiocdev.
type cdevOutput struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (o *cdevOutput) SetLevel(level Level) error {
	if o == nil || o.line == nil {
		return ErrClosed
	}
	return o.line.SetValue(level.Int())
}

func (o *cdevOutput) Close() error {
	if o == nil || o.line == nil {
		return nil
	}
	// Leave the line deasserted on release.
	_ = o.line.SetValue(Low.Int())
	err := o.line.Close()
	o.line = nil
	if o.chip != nil {
		_ = o.chip.Close()
		o.chip = nil
	}
	return err
}
