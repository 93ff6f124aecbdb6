// Package event provides the in-process pub/sub bus connecting the edit
// engine to its collaborators: highlight changes for the viewport,
// status and failure messages for the message panel, history movement
// for anything rendering the current solid.
//
// Delivery is synchronous on the publishing goroutine. The front end is
// single-threaded by design, and the engine only publishes from the
// owning goroutine, so handlers never race with state mutation.
package event

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Topic is a hierarchical dotted event type, e.g. "selection.highlight".
type Topic string

// Match reports whether the topic matches a subscription pattern. A
// pattern either names a topic exactly or ends in ".*" to match a whole
// subtree ("selection.*" matches "selection.hover").
func (t Topic) Match(pattern Topic) bool {
	if t == pattern || pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(string(pattern), ".*"); ok {
		return strings.HasPrefix(string(t), prefix+".")
	}
	return false
}

// Event is a single published occurrence. Events are immutable once
// published.
type Event struct {
	Topic   Topic
	Payload any
	Time    time.Time
	Source  string
}

// Handler receives published events.
type Handler func(Event)

// Subscription is a handle returned by Subscribe, used to unsubscribe.
type Subscription struct {
	id      uint64
	pattern Topic
	fn      Handler
}

// Stats are cumulative bus counters.
type Stats struct {
	Published uint64
	Delivered uint64
	Panics    uint64
}

// Bus routes events to matching subscriptions.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	nextID uint64

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all topics matching pattern.
func (b *Bus) Subscribe(pattern Topic, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{id: b.nextID, pattern: pattern, fn: fn}
	b.subs = append(b.subs, sub)
	return sub
}

// Unsubscribe removes a subscription. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == sub.id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to every matching subscription in
// subscription order and returns the number of handlers run. A panicking
// handler is recovered so one bad subscriber cannot take down the loop.
func (b *Bus) Publish(ev Event) int {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.published.Add(1)

	b.mu.RLock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if ev.Topic.Match(s.pattern) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matched {
		b.deliver(s, ev)
	}
	return len(matched)
}

func (b *Bus) deliver(s *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
		}
	}()
	s.fn(ev)
	b.delivered.Add(1)
}

// Stats returns cumulative counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Panics:    b.panics.Load(),
	}
}
