package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
)

// mcLinkInput is the input a client zone selects to play the link stream.
// Devices accept it on setInput even though getFeatures does not list it.
const mcLinkInput = "mc_link"

// GroupClient names one device zone joining a group as a client.
type GroupClient struct {
	DeviceID string `json:"device_id"`
	ZoneID   string `json:"zone_id"`
}

// LinkGroup makes the leader the distribution server of a group and joins
// the given client zones to it. A leader already serving a group keeps
// its group ID; otherwise a fresh one is generated. The reconciled
// membership converges via the distribution refetches this triggers.
func (e *Engine) LinkGroup(ctx context.Context, leaderID, serverZone string, clients []GroupClient) (string, error) {
	if len(clients) == 0 {
		return "", fmt.Errorf("%w: no clients to link", musiccast.ErrInvalidCommand)
	}

	leader, err := e.worker(leaderID)
	if err != nil {
		return "", err
	}
	leaderInfo, err := e.store.Info(leaderID)
	if err != nil {
		return "", err
	}

	groupID := e.groups.LeaderOf(leaderID)
	if groupID == "" {
		groupID = newGroupID()
	}

	workers := make([]*worker, len(clients))
	hosts := make([]string, len(clients))
	for i, cl := range clients {
		w, err := e.worker(cl.DeviceID)
		if err != nil {
			return "", err
		}
		info, err := e.store.Info(cl.DeviceID)
		if err != nil {
			return "", err
		}
		workers[i] = w
		hosts[i] = info.Host
	}

	if err := leader.client.SetServerInfo(ctx, groupID, serverZone, "add", hosts); err != nil {
		return "", err
	}
	if err := leader.client.StartDistribution(ctx, e.nextDistNum()); err != nil {
		return "", err
	}

	for i, cl := range clients {
		w := workers[i]
		if err := w.client.SetClientInfo(ctx, groupID, cl.ZoneID, leaderInfo.Host); err != nil {
			// A partial join still converges: the leader keeps listing the
			// client, and its pending entry expires if it never accepts.
			return groupID, fmt.Errorf("joining %s: %w", cl.DeviceID, err)
		}
		if err := w.client.Send(ctx, musiccast.SetInput(cl.ZoneID, mcLinkInput)); err != nil {
			e.logger.Warn("client input switch failed", "device", cl.DeviceID, "zone", cl.ZoneID, "error", err)
		}
		w.requestRefetch(refetchRequest{kind: RefetchDistribution})
	}
	leader.requestRefetch(refetchRequest{kind: RefetchDistribution})

	e.logger.Info("group linked", "group", groupID, "leader", leaderID, "clients", len(clients))
	return groupID, nil
}

// UnlinkGroup removes the named client devices from a group. When no
// clients remain, the leader's server role is cancelled and the group
// dissolves.
func (e *Engine) UnlinkGroup(ctx context.Context, groupID string, clientIDs []string) error {
	if len(clientIDs) == 0 {
		return fmt.Errorf("%w: no clients to unlink", musiccast.ErrInvalidCommand)
	}

	grp, ok := e.Snapshot().Group(groupID)
	if !ok || grp.LeaderID == "" {
		return fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
	}
	leader, err := e.worker(grp.LeaderID)
	if err != nil {
		return err
	}

	members := make(map[string]bool, len(grp.Members))
	for _, m := range grp.Members {
		members[m.DeviceID] = true
	}

	workers := make([]*worker, len(clientIDs))
	hosts := make([]string, len(clientIDs))
	for i, id := range clientIDs {
		if id == grp.LeaderID || !members[id] {
			return fmt.Errorf("%w: %s is not a client of group %s", ErrUnknownDevice, id, groupID)
		}
		w, err := e.worker(id)
		if err != nil {
			return err
		}
		info, err := e.store.Info(id)
		if err != nil {
			return err
		}
		workers[i] = w
		hosts[i] = info.Host
	}

	if err := leader.client.SetServerInfo(ctx, groupID, "", "remove", hosts); err != nil {
		return err
	}
	for i, id := range clientIDs {
		w := workers[i]
		if err := w.client.SetClientInfo(ctx, "", "", ""); err != nil {
			e.logger.Warn("client release failed", "device", id, "error", err)
		}
		w.requestRefetch(refetchRequest{kind: RefetchDistribution})
	}

	// Remaining clients keep receiving the stream; an emptied group stops
	// distributing and the leader's server role is cancelled.
	remaining := len(grp.Members) - 1 - len(clientIDs)
	if remaining > 0 {
		if err := leader.client.StartDistribution(ctx, e.nextDistNum()); err != nil {
			return err
		}
	} else {
		if err := leader.client.StopDistribution(ctx); err != nil {
			return err
		}
		if err := leader.client.SetServerInfo(ctx, "", "", "", nil); err != nil {
			return err
		}
	}
	leader.requestRefetch(refetchRequest{kind: RefetchDistribution})

	e.logger.Info("group reduced", "group", groupID, "removed", len(clientIDs), "remaining", remaining)
	return nil
}

// CloseGroup dissolves a group: distribution stops, the leader's server
// role is cancelled, and every client is released.
func (e *Engine) CloseGroup(ctx context.Context, groupID string) error {
	grp, ok := e.Snapshot().Group(groupID)
	if !ok || grp.LeaderID == "" {
		return fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
	}
	leader, err := e.worker(grp.LeaderID)
	if err != nil {
		return err
	}

	if err := leader.client.StopDistribution(ctx); err != nil {
		return err
	}
	if err := leader.client.SetServerInfo(ctx, "", "", "", nil); err != nil {
		return err
	}

	for _, m := range grp.Members {
		if m.DeviceID == grp.LeaderID {
			continue
		}
		w, err := e.worker(m.DeviceID)
		if err != nil {
			continue
		}
		if err := w.client.SetClientInfo(ctx, "", "", ""); err != nil {
			e.logger.Warn("client release failed", "device", m.DeviceID, "error", err)
		}
		w.requestRefetch(refetchRequest{kind: RefetchDistribution})
	}
	leader.requestRefetch(refetchRequest{kind: RefetchDistribution})

	e.logger.Info("group closed", "group", groupID, "leader", grp.LeaderID)
	return nil
}

// nextDistNum cycles the one-byte distribution session tag.
func (e *Engine) nextDistNum() int {
	return int(e.distNum.Add(1) & 0xff)
}

// newGroupID generates the 32-digit hex group ID the protocol expects.
func newGroupID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
