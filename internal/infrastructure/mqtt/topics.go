package mqtt

import "fmt"

// Topic prefixes for the Pulseline MQTT namespace.
//
// Line topics use the flat scheme: pulseline/line/{name}/{category}
// where {name} is the registered line name.
const (
	// TopicPrefix is the base for all Pulseline topics.
	TopicPrefix = "pulseline"

	// TopicPrefixLine is the base for per-line topics.
	TopicPrefixLine = "pulseline/line"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "pulseline/system"
)

// Topics provides builders for Pulseline MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.LineState("led0")
//	// Returns: "pulseline/line/led0/state"
type Topics struct{}

// LineSet returns the topic for writing one control attribute of a line.
//
// Example: pulseline/line/led0/set/freq
func (Topics) LineSet(name, attr string) string {
	return fmt.Sprintf("%s/%s/set/%s", TopicPrefixLine, name, attr)
}

// LineState returns the retained state topic for a line.
//
// Example: pulseline/line/led0/state
func (Topics) LineState(name string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixLine, name)
}

// LineAck returns the topic for command acknowledgements for a line.
//
// Example: pulseline/line/led0/ack
func (Topics) LineAck(name string) string {
	return fmt.Sprintf("%s/%s/ack", TopicPrefixLine, name)
}

// LineHealth returns the topic for line health notifications, such as a
// line entering the degraded state after repeated output failures.
//
// Example: pulseline/line/led0/health
func (Topics) LineHealth(name string) string {
	return fmt.Sprintf("%s/%s/health", TopicPrefixLine, name)
}

// Bind returns the topic for runtime line bind requests.
//
// Example: pulseline/bind
func (Topics) Bind() string {
	return fmt.Sprintf("%s/bind", TopicPrefix)
}

// Unbind returns the topic for runtime line unbind requests.
//
// Example: pulseline/unbind
func (Topics) Unbind() string {
	return fmt.Sprintf("%s/unbind", TopicPrefix)
}

// SystemStatus returns the service availability topic. The broker
// publishes the Last Will here if the service dies unexpectedly.
//
// Example: pulseline/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllLineSets returns a pattern matching attribute writes for all lines.
//
// Pattern: pulseline/line/+/set/+
func (Topics) AllLineSets() string {
	return fmt.Sprintf("%s/+/set/+", TopicPrefixLine)
}

// AllLineStates returns a pattern matching state updates for all lines.
//
// Pattern: pulseline/line/+/state
func (Topics) AllLineStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixLine)
}

// AllTopics returns a pattern matching all Pulseline topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: pulseline/#
func (Topics) AllTopics() string {
	return "pulseline/#"
}
