package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigonotion/musiccast-core/internal/musiccast"
	"github.com/vigonotion/musiccast-core/internal/musiccast/transport"
)

// Config holds the engine's tuning knobs.
type Config struct {
	// ListenAddr is the UDP address notification datagrams arrive on,
	// e.g. "0.0.0.0:41100".
	ListenAddr string

	// PollInterval is the per-device full poll cadence.
	PollInterval time.Duration

	// BackoffBase and BackoffMax bound the exponential retry delay after
	// poll failures.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// FailureThreshold is how many consecutive poll failures mark a
	// device unreachable.
	FailureThreshold int

	// DispatchQueueSize is each subscriber's notification queue depth.
	DispatchQueueSize int

	// RequestTimeout bounds each HTTP request to a device.
	RequestTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:41100"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 2 * time.Minute
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
}

// Stats is a snapshot of the engine's operational counters, for the
// metrics endpoint and the telemetry sink.
type Stats struct {
	Devices              int    `json:"devices"`
	Groups               int    `json:"groups"`
	EventsReceived       uint64 `json:"events_received"`
	EventsMalformed      uint64 `json:"events_malformed"`
	EventsUnknownDevice  uint64 `json:"events_unknown_device"`
	NotificationsDropped uint64 `json:"notifications_dropped"`
}

// Engine is the device state synchronization core. Construct with New,
// then Start, AddDevice for each tracked host, and Subscribe for change
// notifications. Engines are independent; several can coexist.
type Engine struct {
	cfg        Config
	store      *Store
	groups     *Coordinator
	dispatcher *Dispatcher
	listener   *Listener
	logger     Logger

	// newTransport builds the per-device client. Tests substitute fakes.
	newTransport func(host string, udpPort int) (Transport, error)

	mu      sync.Mutex
	workers map[string]*worker
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc

	unknownDevice atomic.Uint64
	distNum       atomic.Uint32
}

// New creates a stopped engine.
func New(cfg Config) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		cfg:        cfg,
		store:      NewStore(),
		dispatcher: NewDispatcher(cfg.DispatchQueueSize),
		workers:    make(map[string]*worker),
		logger:     noopLogger{},
	}
	e.groups = NewCoordinator(e.store.ResolveHost)
	e.listener = NewListener(cfg.ListenAddr, e.handleDatagram)
	e.newTransport = func(host string, udpPort int) (Transport, error) {
		return transport.New(transport.Config{
			Host:    host,
			UDPPort: udpPort,
			Timeout: cfg.RequestTimeout,
		})
	}
	return e
}

// SetLogger attaches a logger to the engine and its components.
func (e *Engine) SetLogger(l Logger) {
	if l == nil {
		return
	}
	e.logger = l
	e.store.SetLogger(l)
	e.groups.SetLogger(l)
	e.dispatcher.SetLogger(l)
	e.listener.SetLogger(l)
}

// Start binds the UDP listener. Devices can be added before or after.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("engine: already started")
	}

	e.runCtx, e.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if err := e.listener.Start(e.runCtx); err != nil {
		e.cancel()
		return err
	}
	e.running = true
	e.logger.Info("engine started", "listen", e.cfg.ListenAddr, "poll_interval", e.cfg.PollInterval.String())
	return nil
}

// Stop cancels all poll loops, closes the UDP socket, and waits for
// in-flight merges to complete before tearing down the dispatcher.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	workers := e.workers
	e.workers = make(map[string]*worker)
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	for _, w := range workers {
		w.stop()
	}
	e.listener.Stop()
	e.dispatcher.Close()
	e.logger.Info("engine stopped")
}

// AddDevice discovers the device at host, validates its capabilities, and
// begins tracking it. Returns the device ID.
func (e *Engine) AddDevice(ctx context.Context, host string) (string, error) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return "", ErrNotRunning
	}
	udpPort := e.listener.Port()
	e.mu.Unlock()

	client, err := e.newTransport(host, udpPort)
	if err != nil {
		return "", err
	}

	info, err := client.GetDeviceInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("engine: discover %s: %w", host, err)
	}
	info.Host = host

	features, err := client.GetFeatures(ctx)
	if err != nil {
		return "", fmt.Errorf("engine: discover %s: %w", host, err)
	}
	if err := validateFeatures(features); err != nil {
		return "", err
	}

	// Names are cosmetic; discovery proceeds without them.
	zoneNames := map[string]string{}
	if names, err := client.GetNameText(ctx); err == nil {
		zoneNames = names.Zones
	} else {
		e.logger.Debug("name text unavailable", "host", host, "error", err)
	}

	if err := e.store.AddDevice(info, features, zoneNames); err != nil {
		return "", err
	}

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		e.store.RemoveDevice(info.ID)
		return "", ErrNotRunning
	}
	w := newWorker(info.ID, client, features, e.store, e.groups, e.emit, workerConfig{
		pollInterval:     e.cfg.PollInterval,
		backoffBase:      e.cfg.BackoffBase,
		backoffMax:       e.cfg.BackoffMax,
		failureThreshold: e.cfg.FailureThreshold,
	}, e.logger)
	e.workers[info.ID] = w
	w.start(e.runCtx)
	e.mu.Unlock()

	e.logger.Info("device added", "device", info.ID, "host", host, "model", info.ModelName, "zones", len(features.Zones))
	return info.ID, nil
}

// validateFeatures rejects capability reports the engine cannot operate
// on, at discovery time rather than on first use.
func validateFeatures(f musiccast.Features) error {
	if len(f.Zones) == 0 {
		return fmt.Errorf("%w: device reports no zones", ErrUnknownZone)
	}
	for _, z := range f.Zones {
		if !z.Has(musiccast.CapPower) {
			return fmt.Errorf("engine: unsupported zone %q: no power control", z.ID)
		}
	}
	return nil
}

// RemoveDevice stops polling a device and deletes its state. Explicit
// removal is the only way a device leaves the model.
func (e *Engine) RemoveDevice(deviceID string) error {
	e.mu.Lock()
	w, ok := e.workers[deviceID]
	if ok {
		delete(e.workers, deviceID)
	}
	e.mu.Unlock()

	if ok {
		w.stop()
	}
	e.groups.Forget(deviceID)
	return e.store.RemoveDevice(deviceID)
}

// Snapshot returns the full tracked state frozen at the moment of the
// call.
func (e *Engine) Snapshot() musiccast.Snapshot {
	return musiccast.Snapshot{
		Devices: e.store.Snapshot(),
		Groups:  e.groups.Snapshot(),
		TakenAt: time.Now(),
	}
}

// Subscribe registers a change callback. A nil filter receives every
// diff.
func (e *Engine) Subscribe(fn func(Notification), filter Filter) SubscriptionID {
	return e.dispatcher.Subscribe(fn, filter)
}

// Unsubscribe removes a subscription.
func (e *Engine) Unsubscribe(id SubscriptionID) {
	e.dispatcher.Unsubscribe(id)
}

// Send validates and issues a control command, then requests an immediate
// refetch of the affected zone so the model converges without waiting for
// the next poll.
func (e *Engine) Send(ctx context.Context, deviceID string, cmd musiccast.Command) error {
	features, err := e.store.Features(deviceID)
	if err != nil {
		return err
	}
	zone, err := features.Zone(cmd.ZoneID)
	if err != nil {
		return err
	}
	if err := cmd.Validate(zone); err != nil {
		return err
	}

	w, err := e.worker(deviceID)
	if err != nil {
		return err
	}

	if err := w.client.Send(ctx, cmd); err != nil {
		return err
	}
	w.requestRefetch(refetchRequest{kind: RefetchZoneStatus, zoneID: cmd.ZoneID})
	return nil
}

// worker returns the running worker for a tracked device.
func (e *Engine) worker(deviceID string) (*worker, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.workers[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return w, nil
}

// Stats returns the engine's operational counters.
func (e *Engine) Stats() Stats {
	snap := e.store.Snapshot()
	return Stats{
		Devices:              len(snap),
		Groups:               len(e.groups.Snapshot()),
		EventsReceived:       e.listener.Received(),
		EventsMalformed:      e.listener.Malformed(),
		EventsUnknownDevice:  e.unknownDevice.Load(),
		NotificationsDropped: e.dispatcher.Dropped(),
	}
}

// emit pairs a diff with a fresh post-merge snapshot and hands it to the
// dispatcher.
func (e *Engine) emit(d Diff) {
	e.dispatcher.Dispatch(Notification{Diff: d, Snapshot: e.Snapshot()})
}

// handleDatagram applies one parsed notification datagram. The device is
// resolved by the payload's device ID first, the sender address second;
// events for untracked devices are discarded.
func (e *Engine) handleDatagram(senderIP string, msg eventMessage) {
	deviceID := msg.DeviceID
	if deviceID == "" || !e.store.Has(deviceID) {
		if id, ok := e.store.ResolveHost(senderIP); ok {
			deviceID = id
		} else {
			e.unknownDevice.Add(1)
			e.logger.Debug("event for unknown device", "device_id", msg.DeviceID, "from", senderIP)
			return
		}
	}

	e.mu.Lock()
	w := e.workers[deviceID]
	e.mu.Unlock()
	if w == nil {
		e.unknownDevice.Add(1)
		return
	}

	now := time.Now()
	for _, ev := range msg.Events {
		if ev.ZoneID != "" && len(ev.Delta) > 0 {
			changed, err := e.store.Merge(deviceID, ev.ZoneID, ev.Delta, musiccast.SourcePush, now)
			if err != nil {
				e.logger.Debug("event merge discarded", "device", deviceID, "zone", ev.ZoneID, "error", err)
			} else if len(changed) > 0 {
				e.emit(Diff{
					Resource:      ResourceZone,
					DeviceID:      deviceID,
					ZoneID:        ev.ZoneID,
					ChangedFields: changed,
				})
			}
		}
		for _, r := range ev.Refetch {
			w.requestRefetch(refetchRequest{kind: r, zoneID: ev.ZoneID})
		}
	}
}
