package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicRoot is the topic root used when config leaves it unset.
const DefaultTopicRoot = "musiccast"

// Topics builds MQTT topic strings for the relay. Using these helpers keeps
// topic naming consistent between the publisher and subscribers.
//
// Topic hierarchy:
//
//	{root}/status                                    daemon online/offline (retained, LWT)
//	{root}/device/{device}/state                     device-level state (retained)
//	{root}/device/{device}/zone/{zone}/state         zone state (retained)
//	{root}/device/{device}/zone/{zone}/set/{field}   inbound commands
//	{root}/group/{group}/state                       group membership (retained)
//
// The zero value uses DefaultTopicRoot:
//
//	topics := mqtt.Topics{Root: cfg.TopicRoot}
//	topics.ZoneState("dev-1", "main")
//	// Returns: "musiccast/device/dev-1/zone/main/state"
type Topics struct {
	Root string
}

func (t Topics) root() string {
	if t.Root == "" {
		return DefaultTopicRoot
	}
	return t.Root
}

// Status returns the daemon status topic, also used for the LWT.
//
// Example: musiccast/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/status", t.root())
}

// DeviceState returns the topic for device-level state (reachability, name).
//
// Example: musiccast/device/dev-1/state
func (t Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", t.root(), deviceID)
}

// ZoneState returns the topic for a zone's state.
//
// Example: musiccast/device/dev-1/zone/main/state
func (t Topics) ZoneState(deviceID, zoneID string) string {
	return fmt.Sprintf("%s/device/%s/zone/%s/state", t.root(), deviceID, zoneID)
}

// ZoneCommand returns the topic a controller publishes to for one field.
//
// Example: musiccast/device/dev-1/zone/main/set/volume
func (t Topics) ZoneCommand(deviceID, zoneID, field string) string {
	return fmt.Sprintf("%s/device/%s/zone/%s/set/%s", t.root(), deviceID, zoneID, field)
}

// GroupState returns the topic for a link group's membership state.
//
// Example: musiccast/group/9a237... /state
func (t Topics) GroupState(groupID string) string {
	return fmt.Sprintf("%s/group/%s/state", t.root(), groupID)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: musiccast/device/+/state
func (t Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", t.root())
}

// AllZoneStates returns a pattern matching every zone state topic.
//
// Pattern: musiccast/device/+/zone/+/state
func (t Topics) AllZoneStates() string {
	return fmt.Sprintf("%s/device/+/zone/+/state", t.root())
}

// AllCommands returns a pattern matching every inbound command topic.
//
// Pattern: musiccast/device/+/zone/+/set/+
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/device/+/zone/+/set/+", t.root())
}

// AllGroupStates returns a pattern matching every group state topic.
//
// Pattern: musiccast/group/+/state
func (t Topics) AllGroupStates() string {
	return fmt.Sprintf("%s/group/+/state", t.root())
}

// Everything returns a pattern matching all topics under the root.
// Use with caution, this receives all relay traffic including echoes
// of the relay's own retained state.
func (t Topics) Everything() string {
	return t.root() + "/#"
}

// ParseCommand extracts the device, zone and field from a command topic.
// Returns ok=false for topics that do not match the command pattern.
func (t Topics) ParseCommand(topic string) (deviceID, zoneID, field string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 7 {
		return "", "", "", false
	}
	if parts[0] != t.root() || parts[1] != "device" || parts[3] != "zone" || parts[5] != "set" {
		return "", "", "", false
	}
	if parts[2] == "" || parts[4] == "" || parts[6] == "" {
		return "", "", "", false
	}
	return parts[2], parts[4], parts[6], true
}
