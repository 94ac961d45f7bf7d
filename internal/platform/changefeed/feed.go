package changefeed

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event announces that a section of the store configuration changed.
// Subscribers re-read the configuration; the event itself carries no payload
// so stale deliveries are harmless.
type Event struct {
	Section   string
	Origin    string
	UpdatedAt time.Time
}

// Publisher broadcasts configuration change events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts ordinary functions to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

// Publish invokes the wrapped function.
func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// ErrFeedClosed is returned when publishing to a closed feed.
var ErrFeedClosed = errors.New("changefeed: feed closed")

const subscriberBuffer = 8

// MemoryFeed fans events out to in-process subscribers. Slow subscribers drop
// events rather than block the publisher; consumers treat any event as a
// signal to refresh, so missed events are recovered by the next one or by the
// poll cycle.
type MemoryFeed struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewMemoryFeed constructs an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]chan Event)}
}

// Publish delivers the event to every active subscriber without blocking.
func (f *MemoryFeed) Publish(_ context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFeedClosed
	}
	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber channel. The returned cancel function
// removes the subscription and closes the channel.
func (f *MemoryFeed) Subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close tears down the feed and closes all subscriber channels.
func (f *MemoryFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

var _ Publisher = (*MemoryFeed)(nil)
