// Package progress fans out textual status events for a job to any number
// of live subscribers.
//
// Delivery is intentionally best-effort: publishing never blocks the
// pipeline. With no subscribers attached an event is dropped outright, and
// a slow subscriber loses its oldest unread event rather than stalling the
// publisher. There is no replay buffer — subscribers that join late miss
// earlier events and observe the job snapshot instead.
package progress

import (
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber queue capacity. Small on purpose:
// progress lines are human-paced, so a consumer more than a handful of
// events behind is already not watching.
const subscriberBuffer = 16

// Event is one status line for a job. Immutable once published; per-job
// ordering matches publish order.
type Event struct {
	JobID     string
	Timestamp time.Time
	Message   string
}

// subscriber is a single attached consumer. closed tracks whether ch has
// been closed so that Close and the cancel func cannot double-close.
type subscriber struct {
	ch     chan Event
	closed bool
}

// Broadcaster delivers per-job event streams. Safe for concurrent use.
type Broadcaster struct {
	mu       sync.Mutex
	subs     map[string][]*subscriber
	terminal map[string]bool
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:     make(map[string][]*subscriber),
		terminal: make(map[string]bool),
	}
}

// Publish delivers message to every live subscriber of jobID. Never blocks:
// a full subscriber queue drops its oldest unread event to make room.
func (b *Broadcaster) Publish(jobID, message string) {
	ev := Event{JobID: jobID, Timestamp: time.Now().UTC(), Message: message}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[jobID] {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Queue full: evict the oldest, then enqueue. The publisher is
			// the only sender, so the second send cannot block.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// Subscribe attaches a new consumer to jobID. The returned channel yields
// events until the job turns terminal or cancel is called, whichever comes
// first; it is closed in either case. Subscribing to an already-terminal
// job returns a closed channel.
func (b *Broadcaster) Subscribe(jobID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	if b.terminal[jobID] {
		sub.closed = true
		close(sub.ch)
		return sub.ch, func() {}
	}

	b.subs[jobID] = append(b.subs[jobID], sub)

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		close(sub.ch)
		b.subs[jobID] = removeSub(b.subs[jobID], sub)
		if len(b.subs[jobID]) == 0 {
			delete(b.subs, jobID)
		}
	}
	return sub.ch, cancel
}

// Close marks jobID terminal, ends the stream for all of its subscribers,
// and releases the job's queues. Further Publish calls for the job are
// silently dropped; further Subscribe calls return a closed channel.
func (b *Broadcaster) Close(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.terminal[jobID] = true
	for _, sub := range b.subs[jobID] {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	delete(b.subs, jobID)
}

// SubscriberCount reports the number of live subscribers for jobID.
func (b *Broadcaster) SubscriberCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}

func removeSub(subs []*subscriber, target *subscriber) []*subscriber {
	for i, s := range subs {
		if s == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
