package exception

import "github.com/yanun0323/errors"

// Feed errors
var (
	// ErrFeedClosed is returned by a subscription once the feed is closed and drained.
	ErrFeedClosed = errors.New("feed: closed")

	// ErrFeedEmpty is returned by a non-blocking receive when nothing is buffered.
	ErrFeedEmpty = errors.New("feed: empty")

	// ErrSubscriptionClosed is returned after the subscriber detached itself.
	ErrSubscriptionClosed = errors.New("feed: subscription closed")

	ErrUnsupportedInterval = errors.New("market data: unsupported interval")
	ErrHistoryUnavailable  = errors.New("market data: history unavailable")
)
