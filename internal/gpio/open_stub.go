//go:build !linux

package gpio

import "fmt"

// Open is the hardware backend stub for platforms without the Linux
// GPIO character device. Use the sim backend instead.
func Open(req Request) (Output, error) {
	return nil, fmt.Errorf("%w (line %q)", ErrUnsupported, req.Line)
}
