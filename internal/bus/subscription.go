package bus

import (
	"context"
	"errors"
	"sync"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// Subscription is one consumer's view of a Feed.
// It is meant for a single receiving goroutine.
type Subscription struct {
	feed *Feed
	id   uint64

	mu       sync.Mutex
	buf      []schema.MarketEvent
	head     int
	n        int
	lagged   uint64
	closed   bool
	detached bool

	ready chan struct{}
}

// Ready is signalled whenever TryRecv has something to report.
// A wake-up may be spurious; TryRecv then returns ErrFeedEmpty.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// TryRecv returns the next event without blocking.
// A pending lag is reported once, as *LagError, before the oldest retained event.
func (s *Subscription) TryRecv() (schema.MarketEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detached {
		return schema.MarketEvent{}, exception.ErrSubscriptionClosed
	}
	if s.lagged > 0 {
		skipped := s.lagged
		s.lagged = 0
		if s.n > 0 || s.closed {
			s.signal()
		}
		return schema.MarketEvent{}, &LagError{Skipped: skipped}
	}
	if s.n > 0 {
		ev := s.buf[s.head]
		s.buf[s.head] = schema.MarketEvent{}
		s.head = (s.head + 1) % len(s.buf)
		s.n--
		if s.n > 0 || s.closed {
			s.signal()
		}
		return ev, nil
	}
	if s.closed {
		s.signal()
		return schema.MarketEvent{}, exception.ErrFeedClosed
	}
	return schema.MarketEvent{}, exception.ErrFeedEmpty
}

// Recv blocks until an event, a lag report, closure or ctx cancellation.
func (s *Subscription) Recv(ctx context.Context) (schema.MarketEvent, error) {
	for {
		ev, err := s.TryRecv()
		if !errors.Is(err, exception.ErrFeedEmpty) {
			return ev, err
		}
		select {
		case <-ctx.Done():
			return schema.MarketEvent{}, ctx.Err()
		case <-s.ready:
		}
	}
}

// Buffered returns the number of events waiting to be received.
func (s *Subscription) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Close detaches the handle from the feed and releases its buffer.
// Other subscribers keep receiving.
func (s *Subscription) Close() {
	s.feed.detach(s.id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return
	}
	s.detached = true
	s.buf = nil
	s.n = 0
	s.signal()
}

func (s *Subscription) push(ev schema.MarketEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detached || s.closed {
		return
	}
	if s.n == len(s.buf) {
		s.buf[s.head] = schema.MarketEvent{}
		s.head = (s.head + 1) % len(s.buf)
		s.n--
		s.lagged++
	}
	s.buf[(s.head+s.n)%len(s.buf)] = ev
	s.n++
	s.signal()
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
