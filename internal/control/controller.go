package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vcstech/pulseline-core/internal/gpio"
	"github.com/vcstech/pulseline-core/internal/infrastructure/mqtt"
	"github.com/vcstech/pulseline-core/internal/pulse"
)

// setTopicParts is the number of segments in a valid attribute write
// topic: pulseline/line/{name}/set/{attr}.
const setTopicParts = 5

// Broker is the MQTT surface the controller needs.
// Satisfied by *mqtt.Client; mocked in tests.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// OpenFunc opens a physical output for a bind request.
type OpenFunc func(req gpio.Request) (gpio.Output, error)

// Logger is the logging surface the controller needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Controller exposes the line registry over MQTT.
// It handles:
//   - Attribute writes on pulseline/line/+/set/+ with acknowledgements
//   - Runtime bind/unbind requests
//   - Retained per-line state publication on every applied write
//   - Degraded-line health notifications
//
// Thread Safety: All methods are safe for concurrent use. Message
// handlers run on the MQTT client's goroutines.
type Controller struct {
	broker   Broker
	registry *pulse.Registry
	repo     pulse.Repository
	open     OpenFunc
	consumer string
	qos      byte
	logger   Logger

	stopOnce sync.Once
}

// Options holds configuration for creating a Controller.
type Options struct {
	// Broker is the MQTT client. Required.
	Broker Broker

	// Registry is the line registry being exposed. Required.
	Registry *pulse.Registry

	// Repository removes persisted records on unbind. Optional.
	Repository pulse.Repository

	// Open opens physical outputs for bind requests.
	// Defaults to gpio.Open.
	Open OpenFunc

	// Consumer is the consumer label attached to opened lines.
	Consumer string

	// QoS is the QoS level for publishes and subscriptions.
	QoS byte

	// Logger is an optional structured logger.
	Logger Logger
}

// NewController creates a controller. Call Start to begin operation.
func NewController(opts Options) (*Controller, error) {
	if opts.Broker == nil {
		return nil, fmt.Errorf("control: broker is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("control: registry is required")
	}

	open := opts.Open
	if open == nil {
		open = gpio.Open
	}

	return &Controller{
		broker:   opts.Broker,
		registry: opts.Registry,
		repo:     opts.Repository,
		open:     open,
		consumer: opts.Consumer,
		qos:      opts.QoS,
		logger:   opts.Logger,
	}, nil
}

// Start subscribes to the control topics and wires registry events to
// their MQTT publications. Retained state is (re)published for every
// line already registered so new subscribers see current state.
func (c *Controller) Start(ctx context.Context) error {
	c.registry.SetOnStateChange(c.publishState)
	c.registry.SetOnDegraded(c.publishDegraded)

	topics := mqtt.Topics{}

	if err := c.broker.Subscribe(topics.AllLineSets(), c.qos, c.handleSet(ctx)); err != nil {
		return fmt.Errorf("subscribe to attribute writes: %w", err)
	}
	if err := c.broker.Subscribe(topics.Bind(), c.qos, c.handleBind(ctx)); err != nil {
		return fmt.Errorf("subscribe to bind requests: %w", err)
	}
	if err := c.broker.Subscribe(topics.Unbind(), c.qos, c.handleUnbind(ctx)); err != nil {
		return fmt.Errorf("subscribe to unbind requests: %w", err)
	}

	for _, snap := range c.registry.List() {
		c.publishState(snap)
	}

	c.logInfo("control surface started", "lines", c.registry.Count())
	return nil
}

// Stop unsubscribes from the control topics and detaches the
// controller from registry events.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		topics := mqtt.Topics{}
		for _, topic := range []string{topics.AllLineSets(), topics.Bind(), topics.Unbind()} {
			if err := c.broker.Unsubscribe(topic); err != nil {
				c.logWarn("unsubscribe failed", "topic", topic, "error", err)
			}
		}
		c.registry.SetOnStateChange(nil)
		c.registry.SetOnDegraded(nil)
		c.logInfo("control surface stopped")
	})
}

// handleSet applies one attribute write from an MQTT message.
// Topic: pulseline/line/{name}/set/{attr}, payload: base-10 integer.
func (c *Controller) handleSet(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		parts := strings.Split(topic, "/")
		if len(parts) != setTopicParts || parts[3] != "set" {
			return fmt.Errorf("control: malformed set topic %q", topic)
		}
		name, attr := parts[2], parts[4]

		_, err := c.registry.WriteAttr(ctx, name, attr, string(payload))
		if err != nil {
			c.logWarn("attribute write rejected",
				"line", name,
				"attr", attr,
				"error", err)
		}

		c.publishAck(newAck("", name, OpSet, attr, err))
		return nil
	}
}

// handleBind processes a runtime bind request: opens the physical
// output and registers the line under the requested name.
func (c *Controller) handleBind(ctx context.Context) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		var req BindMessage
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("control: parse bind request: %w", err)
		}
		if req.Name == "" {
			return errors.New("control: bind request without a name")
		}

		err := c.bind(ctx, req)
		if err != nil {
			c.logWarn("bind rejected", "line", req.Name, "error", err)
		} else {
			c.logInfo("line bound", "line", req.Name, "source", pulse.SourceMQTT)
		}

		c.publishAck(newAck(req.ID, req.Name, OpBind, "", err))
		return nil
	}
}

func (c *Controller) bind(ctx context.Context, req BindMessage) error {
	output, err := c.open(gpio.Request{
		Chip:      req.Chip,
		Line:      req.Line,
		Offset:    req.Offset,
		ActiveLow: req.ActiveLow,
		Consumer:  c.consumer,
	})
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	// Register owns the output from here on and closes it on failure.
	// The returned handle is the registry's own reference, dropped by a
	// later unbind.
	_, err = c.registry.Register(ctx, req.Name, output, pulse.Binding{
		Chip:      req.Chip,
		LineName:  req.Line,
		Offset:    req.Offset,
		ActiveLow: req.ActiveLow,
		Source:    pulse.SourceMQTT,
	})
	return err
}

// handleUnbind withdraws a line and removes its persisted record.
func (c *Controller) handleUnbind(ctx context.Context) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		var req UnbindMessage
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("control: parse unbind request: %w", err)
		}
		if req.Name == "" {
			return errors.New("control: unbind request without a name")
		}

		err := c.registry.Unregister(req.Name)
		if err == nil && c.repo != nil {
			if derr := c.repo.Delete(ctx, req.Name); derr != nil && !errors.Is(derr, pulse.ErrLineNotFound) {
				c.logWarn("failed to delete persisted line", "line", req.Name, "error", derr)
			}
		}
		if err != nil {
			c.logWarn("unbind rejected", "line", req.Name, "error", err)
		} else {
			c.logInfo("line unbound", "line", req.Name)
		}

		c.publishAck(newAck(req.ID, req.Name, OpUnbind, "", err))
		return nil
	}
}

// publishState publishes a retained per-line state snapshot.
func (c *Controller) publishState(snap pulse.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		c.logError("failed to marshal line state", "line", snap.Name, "error", err)
		return
	}

	topic := mqtt.Topics{}.LineState(snap.Name)
	if err := c.broker.Publish(topic, payload, c.qos, true); err != nil {
		c.logError("failed to publish line state", "line", snap.Name, "error", err)
	}
}

// publishDegraded publishes a health notification for a line whose
// output keeps failing.
func (c *Controller) publishDegraded(name string, cause error) {
	msg := HealthMessage{
		Timestamp: time.Now().UTC(),
		Name:      name,
		Status:    "degraded",
	}
	if cause != nil {
		msg.Error = cause.Error()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		c.logError("failed to marshal health message", "line", name, "error", err)
		return
	}

	topic := mqtt.Topics{}.LineHealth(name)
	if err := c.broker.Publish(topic, payload, c.qos, true); err != nil {
		c.logError("failed to publish line health", "line", name, "error", err)
	}
}

// publishAck publishes a non-retained acknowledgement.
func (c *Controller) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		c.logError("failed to marshal ack", "line", ack.Name, "error", err)
		return
	}

	topic := mqtt.Topics{}.LineAck(ack.Name)
	if err := c.broker.Publish(topic, payload, c.qos, false); err != nil {
		c.logError("failed to publish ack", "line", ack.Name, "error", err)
	}
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Controller) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
