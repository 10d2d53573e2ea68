package explorer

import (
	"strings"

	"go.uber.org/zap"
)

// Topic names a kind of state change.
type Topic string

const (
	TopicDimensions   Topic = "dimensions"
	TopicFilters      Topic = "filters"
	TopicFocus        Topic = "focus"
	TopicDistribution Topic = "distribution"
)

// Scope is the lifetime of a subscriber. Closing it releases every
// subscription made with it.
type Scope struct {
	closed   bool
	cleanups []func()
}

func NewScope() *Scope {
	return &Scope{}
}

// OnClose registers fn to run on Close. On a closed scope fn runs immediately.
func (s *Scope) OnClose(fn func()) {
	if s.closed {
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
}

// Close runs the cleanups in reverse registration order. It is idempotent.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true

	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cleanups = nil
}

type listener struct {
	fn      func()
	removed bool
}

// Subscription is the handle returned by Bus.Subscribe.
type Subscription struct {
	bus     *Bus
	entries []subscribed
}

type subscribed struct {
	topic    Topic
	listener *listener
}

// Unsubscribe removes the callback from every topic it was registered for.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}

	for _, e := range s.entries {
		s.bus.remove(e.topic, e.listener)
	}
	s.bus = nil
}

// Bus is a topic-keyed observer registry. Delivery is synchronous, in
// registration order, without payload: handlers re-read state they need.
//
// A handler that publishes runs the nested publish to completion before the
// outer publish reaches its next listener (depth-first). Each publish works on
// a snapshot of the listener list taken when the topic starts firing.
type Bus struct {
	listeners map[Topic][]*listener

	logger  *zap.Logger
	metrics *Metrics
}

func NewBus(logger *zap.Logger, metrics *Metrics) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Bus{
		listeners: make(map[Topic][]*listener),
		logger:    logger,
		metrics:   metrics,
	}
}

// Subscribe registers fn against each comma-separated topic in topics; a
// topic listed twice gets fn twice. When scope is not nil the subscription
// ends with it.
func (b *Bus) Subscribe(topics string, scope *Scope, fn func()) *Subscription {
	sub := &Subscription{bus: b}

	for _, topic := range ParseTopics(topics) {
		l := &listener{fn: fn}
		b.listeners[topic] = append(b.listeners[topic], l)
		sub.entries = append(sub.entries, subscribed{topic: topic, listener: l})
	}

	if scope != nil {
		scope.OnClose(sub.Unsubscribe)
	}

	return sub
}

// Publish fires every comma-separated topic in topics, one after another.
// A topic without listeners is a no-op.
func (b *Bus) Publish(topics string) {
	for _, topic := range ParseTopics(topics) {
		b.fire(topic)
	}
}

func (b *Bus) fire(topic Topic) {
	current := b.listeners[topic]
	if b.metrics != nil {
		b.metrics.Published.WithLabelValues(string(topic)).Inc()
	}
	if len(current) == 0 {
		return
	}

	b.logger.Debug("publish", zap.String("topic", string(topic)), zap.Int("listeners", len(current)))

	snapshot := make([]*listener, len(current))
	copy(snapshot, current)
	for _, l := range snapshot {
		if l.removed {
			continue
		}
		l.fn()
	}
}

func (b *Bus) remove(topic Topic, target *listener) {
	target.removed = true

	list := b.listeners[topic]
	for i, l := range list {
		if l != target {
			continue
		}

		out := make([]*listener, 0, len(list)-1)
		out = append(out, list[:i]...)
		out = append(out, list[i+1:]...)
		if len(out) == 0 {
			delete(b.listeners, topic)
		} else {
			b.listeners[topic] = out
		}

		return
	}
}

// Listeners returns the number of callbacks registered for topic.
func (b *Bus) Listeners(topic Topic) int {
	return len(b.listeners[topic])
}

// ParseTopics splits a comma-separated topic list, dropping blanks.
func ParseTopics(topics string) []Topic {
	parts := strings.Split(topics, ",")
	out := make([]Topic, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Topic(p))
	}

	return out
}
