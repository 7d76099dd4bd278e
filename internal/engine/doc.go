// Package engine implements the device state synchronization core: it
// combines periodic HTTP polling with unsolicited UDP push events into one
// coherent in-memory model of devices, zones, and multi-room groups, and
// fans out change notifications to subscribers.
//
// # Architecture
//
// The Store is the single writer-serialization point; every mutation goes
// through a field-level merge with a per-field last-writer-wins rule keyed
// on receipt time, which is what keeps the model consistent despite
// out-of-order, duplicated, and lost UDP datagrams racing concurrent polls.
//
// The Listener owns one UDP socket shared by all devices and parses each
// datagram into events. The Reconciler runs one poll loop per device with
// exponential backoff on failure. The Coordinator merges per-device group
// reports, trusting the leader's member list and holding unconfirmed
// clients pending for one cycle. The Dispatcher gives every subscriber its
// own delivery queue so a slow consumer never blocks the merge path.
//
// Engines are explicitly constructed values with Start/Stop lifecycles;
// several can coexist in one process.
package engine
