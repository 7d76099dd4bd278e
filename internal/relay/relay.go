package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vigonotion/musiccast-core/internal/engine"
	"github.com/vigonotion/musiccast-core/internal/infrastructure/config"
	"github.com/vigonotion/musiccast-core/internal/infrastructure/mqtt"
	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

// commandTimeout bounds how long an inbound MQTT command may spend talking
// to the device.
const commandTimeout = 10 * time.Second

// Broker is the MQTT surface the relay needs. *mqtt.Client satisfies it.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// StateSource is the engine surface the relay needs. *engine.Engine
// satisfies it.
type StateSource interface {
	Subscribe(fn func(engine.Notification), filter engine.Filter) engine.SubscriptionID
	Unsubscribe(id engine.SubscriptionID)
	Snapshot() musiccast.Snapshot
	Send(ctx context.Context, deviceID string, cmd musiccast.Command) error
}

// Logger is the minimal logging interface the relay uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Relay mirrors engine state onto MQTT and routes inbound command messages
// back into the engine.
type Relay struct {
	engine StateSource
	broker Broker
	topics mqtt.Topics
	qos    byte
	retain bool

	mu      sync.Mutex
	started bool
	subID   engine.SubscriptionID

	logger Logger
}

// New creates a relay. Call Start to begin mirroring.
func New(src StateSource, broker Broker, cfg config.MQTTConfig) *Relay {
	return &Relay{
		engine: src,
		broker: broker,
		topics: mqtt.Topics{Root: cfg.TopicRoot},
		qos:    byte(cfg.QoS), // #nosec G115 -- validated to 0..2 by config
		retain: cfg.Retain,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger. Must be called before Start.
func (r *Relay) SetLogger(l Logger) {
	if l != nil {
		r.logger = l
	}
}

// Start publishes the current state of every tracked resource, subscribes
// to the engine's change feed, and subscribes to inbound command topics.
func (r *Relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	// Seed retained topics so subscribers see current state immediately,
	// not only resources that change after startup.
	snap := r.engine.Snapshot()
	for _, dev := range snap.Devices {
		r.publishDevice(dev)
		for _, zone := range dev.Zones {
			r.publishZone(dev.ID, zone)
		}
	}
	for _, grp := range snap.Groups {
		r.publishGroup(grp)
	}

	if err := r.broker.Subscribe(r.topics.AllCommands(), r.qos, r.handleCommand); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}

	r.subID = r.engine.Subscribe(r.handleNotification, nil)
	r.started = true
	r.logger.Info("relay started", "command_topic", r.topics.AllCommands())
	return nil
}

// Stop detaches the relay from the engine and the broker. Retained state
// topics are left in place; the broker's LWT covers daemon liveness.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.engine.Unsubscribe(r.subID)
	if err := r.broker.Unsubscribe(r.topics.AllCommands()); err != nil {
		r.logger.Warn("unsubscribing command topics", "error", err)
	}
	r.started = false
}

// handleNotification publishes the post-change state of whatever resource
// the diff names.
func (r *Relay) handleNotification(n engine.Notification) {
	switch n.Diff.Resource {
	case engine.ResourceZone:
		dev, ok := n.Snapshot.Device(n.Diff.DeviceID)
		if !ok {
			return
		}
		zone, ok := dev.Zone(n.Diff.ZoneID)
		if !ok {
			return
		}
		r.publishZone(dev.ID, zone)

	case engine.ResourceDevice:
		dev, ok := n.Snapshot.Device(n.Diff.DeviceID)
		if !ok {
			return
		}
		r.publishDevice(dev)

	case engine.ResourceGroup:
		if n.Diff.Has(engine.FieldRemoved) {
			// Empty retained payload clears the topic on the broker.
			r.publish(r.topics.GroupState(n.Diff.GroupID), nil)
			return
		}
		grp, ok := n.Snapshot.Group(n.Diff.GroupID)
		if !ok {
			return
		}
		r.publishGroup(grp)
	}
}

// handleCommand maps an inbound command message onto an engine command.
// Returned errors are logged by the MQTT client's handler wrapper.
func (r *Relay) handleCommand(topic string, payload []byte) error {
	deviceID, zoneID, field, ok := r.topics.ParseCommand(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrUnknownField, topic)
	}

	cmd, err := parseCommand(zoneID, field, payload)
	if err != nil {
		return fmt.Errorf("command on %q: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := r.engine.Send(ctx, deviceID, cmd); err != nil {
		return fmt.Errorf("sending %s to %s/%s: %w", cmd.Kind, deviceID, zoneID, err)
	}
	return nil
}

func (r *Relay) publishZone(deviceID string, zone musiccast.ZoneSnapshot) {
	payload, err := marshalZone(zone)
	if err != nil {
		r.logger.Error("marshalling zone state", "device", deviceID, "zone", zone.ID, "error", err)
		return
	}
	r.publish(r.topics.ZoneState(deviceID, zone.ID), payload)
}

func (r *Relay) publishDevice(dev musiccast.DeviceSnapshot) {
	payload, err := marshalDevice(dev)
	if err != nil {
		r.logger.Error("marshalling device state", "device", dev.ID, "error", err)
		return
	}
	r.publish(r.topics.DeviceState(dev.ID), payload)
}

func (r *Relay) publishGroup(grp musiccast.GroupSnapshot) {
	payload, err := marshalGroup(grp)
	if err != nil {
		r.logger.Error("marshalling group state", "group", grp.ID, "error", err)
		return
	}
	r.publish(r.topics.GroupState(grp.ID), payload)
}

func (r *Relay) publish(topic string, payload []byte) {
	if err := r.broker.Publish(topic, payload, r.qos, r.retain); err != nil {
		r.logger.Warn("publishing state", "topic", topic, "error", err)
	}
}
