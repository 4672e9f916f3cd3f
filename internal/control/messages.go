package control

import (
	"time"

	"github.com/google/uuid"
)

// Operation names used in acknowledgements.
const (
	OpSet    = "set"
	OpBind   = "bind"
	OpUnbind = "unbind"
)

// BindMessage requests that a line be bound at runtime.
// Topic: pulseline/bind
type BindMessage struct {
	// ID correlates the request with its acknowledgement. Optional;
	// one is generated when absent.
	ID string `json:"id,omitempty"`

	// Name is the line's identifying name in the control namespace.
	Name string `json:"name"`

	// Chip is the GPIO character device path; empty scans all chips.
	Chip string `json:"chip,omitempty"`

	// Line is the kernel line name; takes precedence over Offset.
	Line string `json:"line,omitempty"`

	// Offset is the line offset on Chip, used when Line is empty.
	Offset int `json:"offset,omitempty"`

	// ActiveLow inverts electrical polarity.
	ActiveLow bool `json:"active_low,omitempty"`
}

// UnbindMessage requests that a line be withdrawn at runtime.
// Topic: pulseline/unbind
type UnbindMessage struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// AckMessage reports the outcome of a set, bind, or unbind request.
// Topic: pulseline/line/{name}/ack
type AckMessage struct {
	// ID is the correlation id: the request's id when it carried one,
	// otherwise generated.
	ID string `json:"id"`

	// Timestamp is when the acknowledgement was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Name is the line the request addressed.
	Name string `json:"name"`

	// Op is the operation acknowledged: "set", "bind", or "unbind".
	Op string `json:"op"`

	// Attr is the control attribute for set operations.
	Attr string `json:"attr,omitempty"`

	// OK reports whether the request was applied.
	OK bool `json:"ok"`

	// Error describes the failure when OK is false.
	Error string `json:"error,omitempty"`
}

// HealthMessage reports a line health condition.
// Topic: pulseline/line/{name}/health
type HealthMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// newAck builds an acknowledgement, generating a correlation id when
// the request did not carry one.
func newAck(id, name, op, attr string, err error) AckMessage {
	if id == "" {
		id = uuid.New().String()
	}
	ack := AckMessage{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Name:      name,
		Op:        op,
		Attr:      attr,
		OK:        err == nil,
	}
	if err != nil {
		ack.Error = err.Error()
	}
	return ack
}
