// Package broker implements a process-wide pub/sub registry: topics
// mapped to bounded per-subscription delivery queues, with a
// monotonic, process-unique subscription id space.
package broker

import (
	"sync"
	"sync/atomic"

	"kvmux/internal/obs"
	"kvmux/internal/wire"
)

// DefaultQueueCapacity is the default bounded delivery queue size.
const DefaultQueueCapacity = 1024

// Broker holds all topic/subscription state. It is safe for concurrent
// use by every stream in the process.
type Broker struct {
	nextID uint32

	mu     sync.RWMutex
	subs   map[uint32]*subscription // id -> subscription
	topics map[string]map[uint32]struct{}

	queueCapacity int
	metrics       *obs.Metrics // optional; nil disables instrumentation
}

type subscription struct {
	id      uint32
	topic   string
	queue   chan wire.Response
	closeMu sync.Mutex
	closed  bool
}

// Option configures a Broker at construction time.
type Option func(*Broker)

// WithMetrics instruments subscription and publish-drop counts into m.
func WithMetrics(m *obs.Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

// New returns an empty broker with the default queue capacity.
func New(opts ...Option) *Broker {
	return NewWithCapacity(DefaultQueueCapacity, opts...)
}

// NewWithCapacity returns an empty broker whose delivery queues hold at
// most capacity responses each.
func NewWithCapacity(capacity int, opts ...Option) *Broker {
	b := &Broker{
		subs:          make(map[uint32]*subscription),
		topics:        make(map[string]map[uint32]struct{}),
		queueCapacity: capacity,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is the caller-facing handle returned by Subscribe: a
// channel yielding responses until Unsubscribe, stream termination, or
// explicit Close.
type Subscription struct {
	ID       uint32
	Topic    string
	Ack      wire.Response
	Messages <-chan wire.Response

	b  *Broker
	id uint32
}

// Close unsubscribes early (e.g. on stream/connection teardown),
// equivalent to the caller issuing Unsubscribe itself. Every caller
// that obtains a Subscription must eventually call Close exactly once,
// even when the client never sends an explicit Unsubscribe — otherwise
// the broker keeps delivering into an unread queue forever.
func (s *Subscription) Close() {
	s.b.Unsubscribe(s.Topic, s.id)
}

// Subscribe allocates a new subscription id, registers it under topic,
// and returns a handle whose Ack is the single acknowledgement response
// (status 200, values=[Integer(id)]) and whose Messages channel streams
// subsequent published data until the subscription is closed.
func (b *Broker) Subscribe(topic string) *Subscription {
	id := atomic.AddUint32(&b.nextID, 1)
	sub := &subscription{
		id:    id,
		topic: topic,
		queue: make(chan wire.Response, b.queueCapacity),
	}

	b.mu.Lock()
	b.subs[id] = sub
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint32]struct{})
	}
	b.topics[topic][id] = struct{}{}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SubscriptionsActive.Inc()
	}

	return &Subscription{
		ID:       id,
		Topic:    topic,
		Ack:      wire.Response{Status: wire.StatusOK, Values: []wire.Value{wire.Integer(int64(id))}},
		Messages: sub.queue,
		b:        b,
		id:       id,
	}
}

// Publish delivers data to every current subscriber of topic. Delivery
// is non-blocking: a full queue drops its oldest undelivered item to
// make room (drop-oldest), so Publish never blocks on a slow
// subscriber. It always returns a single status-200 response with no
// values.
func (b *Broker) Publish(topic string, data []wire.Value) wire.Response {
	resp := wire.Response{Status: wire.StatusOK, Values: data}

	b.mu.RLock()
	ids := b.topics[topic]
	subs := make([]*subscription, 0, len(ids))
	for id := range ids {
		if s, ok := b.subs[id]; ok {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, resp)
	}
	return wire.Response{Status: wire.StatusOK}
}

func (b *Broker) deliver(s *subscription, resp wire.Response) {
	for {
		select {
		case s.queue <- resp:
			return
		default:
		}
		// Queue full: drop the oldest undelivered item and retry.
		select {
		case <-s.queue:
			if b.metrics != nil {
				b.metrics.PublishDropped.Inc()
			}
		default:
			// Drained concurrently by the subscriber; retry the send.
		}
	}
}

// Unsubscribe removes (topic, id), closing its delivery queue so the
// subscriber's Messages channel drains and then closes. Returns
// status 404 if id is unknown or does not belong to topic.
func (b *Broker) Unsubscribe(topic string, id uint32) wire.Response {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if !ok || sub.topic != topic {
		b.mu.Unlock()
		return wire.Response{Status: wire.StatusNotFound, Message: "unknown subscription"}
	}
	delete(b.subs, id)
	if set := b.topics[topic]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(b.topics, topic)
		}
	}
	b.mu.Unlock()

	closeSub(sub)
	if b.metrics != nil {
		b.metrics.SubscriptionsActive.Dec()
	}
	return wire.Response{Status: wire.StatusOK}
}

func closeSub(s *subscription) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}
