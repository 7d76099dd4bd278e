package engine

import (
	"sort"
	"sync"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

type memberState struct {
	role    musiccast.GroupRole
	pending bool
}

type groupState struct {
	id         string
	name       string
	leaderID   string
	serverZone string
	members    map[string]*memberState
	// confirmed is the member set from the leader's most recent report.
	// Nil while the group has no leader.
	confirmed map[string]bool
}

// Coordinator reconciles the per-device group views into logical groups.
//
// The device reporting itself as server is authoritative for the member
// list. A member the leader stops confirming is held pending for one more
// reconciliation cycle before being dropped, which absorbs the transient
// asymmetry of join/leave without flapping membership. While a group has
// no leader, a member's own reports drive the same pending progression.
type Coordinator struct {
	mu       sync.Mutex
	groups   map[string]*groupState
	byDevice map[string]string
	resolve  func(host string) (deviceID string, ok bool)
	logger   Logger
}

// NewCoordinator creates a coordinator. resolve maps a client host address
// from a leader's report onto a tracked device ID.
func NewCoordinator(resolve func(host string) (string, bool)) *Coordinator {
	return &Coordinator{
		groups:   make(map[string]*groupState),
		byDevice: make(map[string]string),
		resolve:  resolve,
		logger:   noopLogger{},
	}
}

// SetLogger attaches a logger.
func (c *Coordinator) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// Report merges one device's group view, taken during its reconciliation
// cycle, and returns the membership diffs it caused.
func (c *Coordinator) Report(deviceID string, view musiccast.GroupView) []Diff {
	c.mu.Lock()
	defer c.mu.Unlock()

	var diffs []Diff

	current := c.byDevice[deviceID]
	if !view.InGroup() {
		if current != "" {
			diffs = append(diffs, c.leave(deviceID, current)...)
		}
		return diffs
	}

	// A device belongs to at most one group; switching groups leaves the
	// old one first.
	if current != "" && current != view.GroupID {
		diffs = append(diffs, c.leave(deviceID, current)...)
	}

	g, ok := c.groups[view.GroupID]
	if !ok {
		g = &groupState{
			id:      view.GroupID,
			members: make(map[string]*memberState),
		}
		c.groups[view.GroupID] = g
	}

	switch view.Role {
	case musiccast.RoleServer:
		diffs = append(diffs, c.reportLeader(deviceID, g, view)...)
	case musiccast.RoleClient:
		diffs = append(diffs, c.reportClient(deviceID, g)...)
	default:
		c.logger.Warn("ignoring group view with unknown role",
			"device", deviceID, "group", g.id, "role", string(view.Role))
	}

	return diffs
}

func (c *Coordinator) reportLeader(deviceID string, g *groupState, view musiccast.GroupView) []Diff {
	if g.leaderID != "" && g.leaderID != deviceID {
		if _, stillMember := g.members[g.leaderID]; stillMember {
			// Two devices claiming leadership is a defect in the reports.
			// Keep the prior valid leader and ignore this one.
			c.logger.Error("second leader claim for group, ignoring report",
				"group", g.id, "leader", g.leaderID, "claimant", deviceID)
			return nil
		}
	}

	g.leaderID = deviceID
	g.name = view.GroupName
	g.serverZone = view.ServerZone

	confirmed := map[string]bool{deviceID: true}
	for _, host := range view.ClientHosts {
		if id, ok := c.resolve(host); ok {
			confirmed[id] = true
		}
	}
	g.confirmed = confirmed

	var diffs []Diff
	changed := false
	if m, ok := g.members[deviceID]; !ok {
		g.members[deviceID] = &memberState{role: musiccast.RoleServer}
		c.byDevice[deviceID] = g.id
		changed = true
	} else {
		if m.role != musiccast.RoleServer {
			m.role = musiccast.RoleServer
			changed = true
		}
		if m.pending {
			m.pending = false
			changed = true
		}
	}

	for id := range confirmed {
		if id == deviceID {
			continue
		}
		if m, ok := g.members[id]; ok {
			if m.pending {
				m.pending = false
				changed = true
			}
			continue
		}
		// A confirmed client may still be listed in a group it has not
		// re-reported yet. Evict it there first; a device belongs to at
		// most one group.
		if old, ok := c.byDevice[id]; ok && old != g.id {
			diffs = append(diffs, c.leave(id, old)...)
		}
		g.members[id] = &memberState{role: musiccast.RoleClient}
		c.byDevice[id] = g.id
		changed = true
	}

	// Members the leader no longer confirms: pending on the first
	// omission, dropped on the second. No diff until expiry.
	for id, m := range g.members {
		if confirmed[id] {
			continue
		}
		if !m.pending {
			m.pending = true
			continue
		}
		delete(g.members, id)
		delete(c.byDevice, id)
		changed = true
	}

	if changed {
		diffs = append(diffs, membersDiff(g))
	}
	return append(diffs, c.removeIfEmpty(g)...)
}

func (c *Coordinator) reportClient(deviceID string, g *groupState) []Diff {
	m, ok := g.members[deviceID]
	if !ok {
		// A client's claim stays pending until the leader confirms it.
		g.members[deviceID] = &memberState{
			role:    musiccast.RoleClient,
			pending: !g.confirmed[deviceID],
		}
		c.byDevice[deviceID] = g.id
		return []Diff{membersDiff(g)}
	}

	if g.leaderID != "" {
		// The leader's reports own the pending progression.
		if g.confirmed[deviceID] {
			m.pending = false
		}
		return nil
	}

	// Leaderless group: the member's own cycles advance its pending state.
	if !m.pending {
		m.pending = true
		return nil
	}
	delete(g.members, deviceID)
	delete(c.byDevice, deviceID)
	diffs := []Diff{membersDiff(g)}
	return append(diffs, c.removeIfEmpty(g)...)
}

// leave removes a device from a group, because the device itself reported
// no membership there or because another group's leader confirmed it.
func (c *Coordinator) leave(deviceID, groupID string) []Diff {
	g, ok := c.groups[groupID]
	if !ok {
		delete(c.byDevice, deviceID)
		return nil
	}

	delete(g.members, deviceID)
	delete(c.byDevice, deviceID)
	if g.leaderID == deviceID {
		g.leaderID = ""
		g.confirmed = nil
	}

	diffs := []Diff{membersDiff(g)}
	return append(diffs, c.removeIfEmpty(g)...)
}

// removeIfEmpty destroys a group with no remaining members. The removal
// diff fires exactly once because the group ceases to exist.
func (c *Coordinator) removeIfEmpty(g *groupState) []Diff {
	if len(g.members) > 0 {
		return nil
	}
	delete(c.groups, g.id)
	c.logger.Info("group removed", "group", g.id)
	return []Diff{{
		Resource:      ResourceGroup,
		GroupID:       g.id,
		ChangedFields: []musiccast.Field{FieldRemoved},
	}}
}

func membersDiff(g *groupState) Diff {
	return Diff{
		Resource:      ResourceGroup,
		GroupID:       g.id,
		ChangedFields: []musiccast.Field{FieldMembers},
	}
}

// GroupOf returns the group a device currently belongs to, or "".
func (c *Coordinator) GroupOf(deviceID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byDevice[deviceID]
}

// LeaderOf returns the ID of the group the device currently leads, or "".
func (c *Coordinator) LeaderOf(deviceID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	groupID, ok := c.byDevice[deviceID]
	if !ok {
		return ""
	}
	if g, ok := c.groups[groupID]; ok && g.leaderID == deviceID {
		return groupID
	}
	return ""
}

// Forget drops a device from all group state without diffs, for device
// removal.
func (c *Coordinator) Forget(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	groupID, ok := c.byDevice[deviceID]
	if !ok {
		return
	}
	if g, ok := c.groups[groupID]; ok {
		delete(g.members, deviceID)
		if g.leaderID == deviceID {
			g.leaderID = ""
			g.confirmed = nil
		}
		if len(g.members) == 0 {
			delete(c.groups, groupID)
		}
	}
	delete(c.byDevice, deviceID)
}

// Snapshot returns immutable copies of all current groups, leader first
// within each member list.
func (c *Coordinator) Snapshot() []musiccast.GroupSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]musiccast.GroupSnapshot, 0, len(c.groups))
	for _, g := range c.groups {
		gs := musiccast.GroupSnapshot{
			ID:       g.id,
			Name:     g.name,
			LeaderID: g.leaderID,
			Members:  make([]musiccast.GroupMember, 0, len(g.members)),
		}
		for id, m := range g.members {
			gs.Members = append(gs.Members, musiccast.GroupMember{
				DeviceID: id,
				Role:     m.role,
				Pending:  m.pending,
			})
		}
		sort.Slice(gs.Members, func(i, j int) bool {
			a, b := gs.Members[i], gs.Members[j]
			if (a.Role == musiccast.RoleServer) != (b.Role == musiccast.RoleServer) {
				return a.Role == musiccast.RoleServer
			}
			return a.DeviceID < b.DeviceID
		})
		out = append(out, gs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
