package pulse

import "time"

// Control attribute names. These are the full per-line control surface:
// every external write goes through one of these four attributes.
const (
	// AttrStatus enables (1) or disables (0) the line.
	AttrStatus = "status"

	// AttrFreq is the pulse frequency in cycles per second. 0 disarms
	// the timer and leaves the line at a steady level.
	AttrFreq = "freq"

	// AttrOnCycles is the number of consecutive ticks the output is
	// driven high per cycle.
	AttrOnCycles = "on_cycles"

	// AttrOffCycles is the number of consecutive ticks the output is
	// driven low per cycle.
	AttrOffCycles = "off_cycles"
)

// Attributes lists the recognised control attributes in display order.
var Attributes = []string{AttrStatus, AttrFreq, AttrOnCycles, AttrOffCycles}

// IsAttribute reports whether name is a recognised control attribute.
func IsAttribute(name string) bool {
	switch name {
	case AttrStatus, AttrFreq, AttrOnCycles, AttrOffCycles:
		return true
	}
	return false
}

// Default per-line settings applied at registration: disabled, steady
// low, and an alternating square wave (50% duty) once enabled.
const (
	defaultOnCycles  = 1
	defaultOffCycles = 1
)

// Binding sources.
const (
	// SourceConfig marks lines bound statically from configuration.
	SourceConfig = "config"

	// SourceMQTT marks lines bound at runtime over MQTT.
	SourceMQTT = "mqtt"
)

// Binding describes how a line maps onto a physical output and where
// the binding came from.
type Binding struct {
	// Chip is the GPIO character device path; empty means scan.
	Chip string `json:"chip,omitempty"`

	// LineName is the kernel line name; takes precedence over Offset.
	LineName string `json:"line,omitempty"`

	// Offset is the line offset on Chip.
	Offset int `json:"offset"`

	// ActiveLow inverts electrical polarity.
	ActiveLow bool `json:"active_low"`

	// Source records who bound the line: "config" or "mqtt".
	Source string `json:"source"`
}

// Settings is the persisted, externally writable portion of a line's
// state: exactly the four control attributes.
type Settings struct {
	Enabled   bool `json:"enabled"`
	Freq      int  `json:"freq"`
	OnCycles  int  `json:"on_cycles"`
	OffCycles int  `json:"off_cycles"`
}

// Record is one persisted line: its binding plus its last applied
// settings, restored when the same name is bound again.
type Record struct {
	Name      string
	Binding   Binding
	Settings  Settings
	UpdatedAt time.Time
}

// Snapshot is a point-in-time copy of a line's externally visible
// state, used by the control surfaces and state publications.
type Snapshot struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Freq        int    `json:"freq"`
	OnCycles    int    `json:"on_cycles"`
	OffCycles   int    `json:"off_cycles"`
	Level       int    `json:"level"`
	PeriodTicks int    `json:"period_ticks"`
}
