// Package bus fans market events out to independent subscribers.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

const defaultBacklog = 1024

// LagError reports events dropped because the subscriber fell behind.
type LagError struct {
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("feed: subscriber lagged, skipped %d events", e.Skipped)
}

// Source streams upstream market events until it is exhausted or ctx ends.
type Source interface {
	Stream(ctx context.Context, emit func(schema.MarketEvent)) error
}

// Feed broadcasts market events with a bounded backlog per subscriber.
// Publish never blocks; a full subscriber loses its oldest buffered event.
type Feed struct {
	backlog int

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	published atomic.Uint64
}

// NewFeed creates a feed. A non-positive backlog uses the default.
func NewFeed(backlog int) *Feed {
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &Feed{
		backlog: backlog,
		subs:    make(map[uint64]*Subscription),
	}
}

// Subscribe attaches a handle that sees events published from now on.
// Subscribing to a closed feed yields a handle that reports ErrFeedClosed.
func (f *Feed) Subscribe() *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	sub := &Subscription{
		feed:  f,
		id:    f.nextID,
		buf:   make([]schema.MarketEvent, f.backlog),
		ready: make(chan struct{}, 1),
	}
	if f.closed {
		sub.closed = true
		sub.signal()
		return sub
	}
	f.subs[sub.id] = sub
	return sub
}

// Publish delivers ev to every attached subscriber.
func (f *Feed) Publish(ev schema.MarketEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return exception.ErrFeedClosed
	}
	for _, sub := range f.subs {
		sub.push(ev)
	}
	f.published.Add(1)
	return nil
}

// Close stops publishing. Subscribers drain what they hold, then see ErrFeedClosed.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for _, sub := range f.subs {
		sub.markClosed()
	}
}

// Run pumps src into the feed and closes the feed when src returns.
func (f *Feed) Run(ctx context.Context, src Source) error {
	defer f.Close()
	return src.Stream(ctx, func(ev schema.MarketEvent) {
		_ = f.Publish(ev)
	})
}

// Subscribers returns the number of attached handles.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Published returns the number of events accepted by Publish.
func (f *Feed) Published() uint64 {
	return f.published.Load()
}

func (f *Feed) detach(id uint64) {
	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
}
