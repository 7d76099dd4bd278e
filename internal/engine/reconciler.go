package engine

import (
	"context"
	"time"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
	"github.com/vigonotion/musiccast-core/internal/musiccast/transport"
)

// Transport is the per-device HTTP surface the engine consumes. Satisfied
// by *transport.Client; tests substitute fakes.
type Transport interface {
	GetDeviceInfo(ctx context.Context) (musiccast.DeviceInfo, error)
	GetFeatures(ctx context.Context) (musiccast.Features, error)
	GetNameText(ctx context.Context) (transport.NameText, error)
	GetZoneStatus(ctx context.Context, zoneID string) (transport.ZoneStatus, error)
	GetPlayInfo(ctx context.Context) (transport.PlayInfo, error)
	GetDistributionInfo(ctx context.Context) (musiccast.GroupView, error)
	SetServerInfo(ctx context.Context, groupID, zone, action string, clientHosts []string) error
	SetClientInfo(ctx context.Context, groupID, zone, serverHost string) error
	StartDistribution(ctx context.Context, num int) error
	StopDistribution(ctx context.Context) error
	Send(ctx context.Context, cmd musiccast.Command) error
}

// refetchRequest asks a worker for an immediate targeted fetch, raised by
// a *_updated event flag that carried no values.
type refetchRequest struct {
	kind   Refetch
	zoneID string
}

// workerConfig carries the per-device polling knobs.
type workerConfig struct {
	pollInterval     time.Duration
	backoffBase      time.Duration
	backoffMax       time.Duration
	failureThreshold int
}

// worker runs one device's reconciliation loop: a full poll every
// interval, immediate targeted fetches on request, exponential backoff on
// failure. One worker per device so a slow device cannot stall others.
type worker struct {
	deviceID string
	client   Transport
	store    *Store
	groups   *Coordinator
	emit     func(Diff)
	cfg      workerConfig
	logger   Logger
	now      func() time.Time

	features musiccast.Features

	kick   chan refetchRequest
	cancel context.CancelFunc
	done   chan struct{}

	failures int
}

func newWorker(deviceID string, client Transport, features musiccast.Features, store *Store, groups *Coordinator, emit func(Diff), cfg workerConfig, logger Logger) *worker {
	return &worker{
		deviceID: deviceID,
		client:   client,
		store:    store,
		groups:   groups,
		emit:     emit,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		features: features,
		kick:     make(chan refetchRequest, 16),
		done:     make(chan struct{}),
	}
}

func (w *worker) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	go w.run(ctx)
}

func (w *worker) stop() {
	w.cancel()
	<-w.done
}

// requestRefetch queues a targeted fetch. Never blocks the event path; a
// full queue falls back to the next regular poll, which fetches everything
// anyway.
func (w *worker) requestRefetch(r refetchRequest) {
	select {
	case w.kick <- r:
	default:
	}
}

func (w *worker) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-w.kick:
			w.refetch(ctx, r)
		case <-timer.C:
			w.poll(ctx)
			timer.Reset(w.delay())
		}
	}
}

// delay returns the wait before the next poll: the regular interval while
// healthy, exponential backoff with a ceiling while failing.
func (w *worker) delay() time.Duration {
	if w.failures == 0 {
		return w.cfg.pollInterval
	}
	d := w.cfg.backoffBase
	for i := 1; i < w.failures && d < w.cfg.backoffMax; i++ {
		d *= 2
	}
	if d > w.cfg.backoffMax {
		d = w.cfg.backoffMax
	}
	return d
}

// poll fetches the device's full status and merges it field by field. A
// transport failure retains all existing state.
func (w *worker) poll(ctx context.Context) {
	for _, zoneID := range w.features.ZoneIDs() {
		st, err := w.client.GetZoneStatus(ctx, zoneID)
		if err != nil {
			w.fail(err)
			return
		}
		w.merge(zoneID, st.Delta(), musiccast.SourcePoll)
	}

	if w.features.HasNetUSB {
		pi, err := w.client.GetPlayInfo(ctx)
		if err != nil {
			w.fail(err)
			return
		}
		w.mergePlayInfo(pi)
	}

	if w.features.HasDistribution {
		view, err := w.client.GetDistributionInfo(ctx)
		if err != nil {
			w.fail(err)
			return
		}
		w.reportGroup(view)
	}

	w.succeed()
}

// refetch fetches exactly the sub-resource an event flagged.
func (w *worker) refetch(ctx context.Context, r refetchRequest) {
	switch r.kind {
	case RefetchZoneStatus:
		st, err := w.client.GetZoneStatus(ctx, r.zoneID)
		if err != nil {
			w.fail(err)
			return
		}
		w.merge(r.zoneID, st.Delta(), musiccast.SourcePoll)
	case RefetchPlayInfo:
		pi, err := w.client.GetPlayInfo(ctx)
		if err != nil {
			w.fail(err)
			return
		}
		w.mergePlayInfo(pi)
	case RefetchDistribution:
		view, err := w.client.GetDistributionInfo(ctx)
		if err != nil {
			w.fail(err)
			return
		}
		w.reportGroup(view)
	case RefetchFeatures:
		f, err := w.client.GetFeatures(ctx)
		if err != nil {
			w.fail(err)
			return
		}
		if err := w.store.UpdateFeatures(w.deviceID, f); err == nil {
			w.features = f
		}
	}
	w.succeed()
}

func (w *worker) merge(zoneID string, delta musiccast.Delta, source musiccast.Source) {
	changed, err := w.store.Merge(w.deviceID, zoneID, delta, source, w.now())
	if err != nil {
		w.logger.Debug("merge discarded", "device", w.deviceID, "zone", zoneID, "error", err)
		return
	}
	if len(changed) == 0 {
		return
	}
	w.emit(Diff{
		Resource:      ResourceZone,
		DeviceID:      w.deviceID,
		ZoneID:        zoneID,
		ChangedFields: changed,
	})
}

// mergePlayInfo attaches playback metadata to the zone playing a network
// source.
func (w *worker) mergePlayInfo(pi transport.PlayInfo) {
	w.merge(w.playInfoZone(), pi.Delta(), musiccast.SourcePoll)
}

// playInfoZone picks the zone the playback metadata belongs to: the first
// zone whose selected input is fed by the netusb play info, falling back
// to the device's first zone. Devices report one play info block, not one
// per zone.
func (w *worker) playInfoZone() string {
	ids := w.features.ZoneIDs()
	inputs := w.store.ZoneInputs(w.deviceID)
	for _, zoneID := range ids {
		if w.features.NetUSBInput(inputs[zoneID]) {
			return zoneID
		}
	}
	if len(ids) > 0 {
		return ids[0]
	}
	return "main"
}

func (w *worker) reportGroup(view musiccast.GroupView) {
	diffs := w.groups.Report(w.deviceID, view)
	if err := w.store.SetGroupID(w.deviceID, w.groups.GroupOf(w.deviceID)); err != nil {
		w.logger.Debug("group id sync failed", "device", w.deviceID, "error", err)
	}
	for _, d := range diffs {
		w.emit(d)
	}
}

// fail records one poll failure; crossing the configured threshold marks
// the device unreachable without touching its zone state.
func (w *worker) fail(err error) {
	w.failures++
	w.logger.Warn("poll failed", "device", w.deviceID, "failures", w.failures, "error", err)

	if w.failures == w.cfg.failureThreshold {
		if changed, serr := w.store.SetReachable(w.deviceID, false); serr == nil && changed {
			w.logger.Info("device unreachable", "device", w.deviceID)
			w.emit(Diff{
				Resource:      ResourceDevice,
				DeviceID:      w.deviceID,
				ChangedFields: []musiccast.Field{FieldReachable},
			})
		}
	}
}

// succeed resets the failure streak and clears the unreachable flag.
func (w *worker) succeed() {
	w.failures = 0
	if changed, err := w.store.SetReachable(w.deviceID, true); err == nil && changed {
		w.emit(Diff{
			Resource:      ResourceDevice,
			DeviceID:      w.deviceID,
			ChangedFields: []musiccast.Field{FieldReachable},
		})
	}
}
