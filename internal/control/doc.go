// Package control exposes the line registry over MQTT.
//
// This package manages:
//   - Attribute writes via pulseline/line/{name}/set/{attr}
//   - Runtime line binding via pulseline/bind and pulseline/unbind
//   - Acknowledgements with correlation ids on pulseline/line/{name}/ack
//   - Retained state snapshots on pulseline/line/{name}/state
//   - Degraded-line health on pulseline/line/{name}/health
//
// Set payloads are bare base-10 integers, the same wire format the HTTP
// text surface uses. Bind and unbind payloads are JSON.
//
// The controller never owns line state itself; it routes requests into
// the registry and mirrors the registry's state change and degraded
// callbacks onto the broker.
package control
