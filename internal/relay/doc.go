// Package relay mirrors engine state onto an MQTT broker and turns inbound
// MQTT messages into device commands.
//
// Outbound, the relay subscribes to the engine's change feed and publishes
// one retained message per changed resource:
//
//	{root}/device/{device}/state          reachability, model, group membership
//	{root}/device/{device}/zone/{z}/state full zone state as JSON
//	{root}/group/{group}/state            reconciled group membership
//
// Retained messages mean a subscriber connecting late immediately receives
// the current state of every zone without waiting for the next change.
//
// Inbound, the relay subscribes to the command pattern
// {root}/device/+/zone/+/set/+ and maps each message onto a typed command,
// e.g. publishing `42` to .../zone/main/set/volume issues a volume command.
// Invalid commands are rejected by the engine's validation and logged; they
// never reach the device.
package relay
