package engine

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// SubscriptionID is an opaque handle returned by Subscribe.
type SubscriptionID string

// Filter decides whether a subscriber receives a given diff. A nil filter
// matches everything.
type Filter func(Diff) bool

// subscriber owns one delivery queue and one delivery goroutine, so a slow
// callback can never block the merge loop or other subscribers.
type subscriber struct {
	fn     func(Notification)
	filter Filter
	queue  chan Notification
	done   chan struct{}
}

// Dispatcher fans diffs out to subscribers, delivering each matching diff
// exactly once per subscriber. When a subscriber's queue overflows the
// oldest queued notification is dropped and counted.
type Dispatcher struct {
	mu        sync.RWMutex
	subs      map[SubscriptionID]*subscriber
	queueSize int
	closed    bool
	logger    Logger

	dropped atomic.Uint64
}

// NewDispatcher creates a dispatcher whose per-subscriber queues hold
// queueSize notifications. Zero or negative means 64.
func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		subs:      make(map[SubscriptionID]*subscriber),
		queueSize: queueSize,
		logger:    noopLogger{},
	}
}

// SetLogger attaches a logger.
func (d *Dispatcher) SetLogger(l Logger) {
	if l != nil {
		d.logger = l
	}
}

// Subscribe registers a callback. The callback runs on a dedicated
// goroutine owned by the dispatcher; it must not call back into
// Subscribe/Unsubscribe for the same subscription.
func (d *Dispatcher) Subscribe(fn func(Notification), filter Filter) SubscriptionID {
	sub := &subscriber{
		fn:     fn,
		filter: filter,
		queue:  make(chan Notification, d.queueSize),
		done:   make(chan struct{}),
	}

	id := SubscriptionID(uuid.New().String())

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		close(sub.done)
		return id
	}
	d.subs[id] = sub
	d.mu.Unlock()

	go sub.deliver()
	return id
}

// Unsubscribe removes a subscription. Already-queued notifications are
// still delivered before the delivery goroutine exits.
func (d *Dispatcher) Unsubscribe(id SubscriptionID) {
	d.mu.Lock()
	sub, ok := d.subs[id]
	if ok {
		delete(d.subs, id)
	}
	d.mu.Unlock()

	if ok {
		close(sub.queue)
		<-sub.done
	}
}

// Dispatch enqueues the notification for every matching subscriber. Never
// blocks: a full queue drops its oldest entry to make room.
func (d *Dispatcher) Dispatch(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, sub := range d.subs {
		if sub.filter != nil && !sub.filter(n.Diff) {
			continue
		}
		for {
			select {
			case sub.queue <- n:
			default:
				// Full queue: drop the oldest entry, count it, and retry
				// the send. The newest notification always lands.
				select {
				case <-sub.queue:
					d.dropped.Add(1)
					d.logger.Warn("subscriber queue full, dropped oldest notification")
				default:
				}
				continue
			}
			break
		}
	}
}

// Close stops all delivery goroutines. Dispatch calls after Close are
// no-ops.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	subs := d.subs
	d.subs = make(map[SubscriptionID]*subscriber)
	d.closed = true
	d.mu.Unlock()

	for _, sub := range subs {
		close(sub.queue)
		<-sub.done
	}
}

// Dropped reports how many notifications overflowed subscriber queues.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

func (s *subscriber) deliver() {
	defer close(s.done)
	for n := range s.queue {
		s.fn(n)
	}
}
