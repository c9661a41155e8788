// Package og is the order-submission boundary.
package og

import (
	"context"

	"tradeexec/internal/schema"
)

// Router accepts an order intent and returns the venue's order id.
// Implementations must be idempotent on OrderIntent.Token.
type Router interface {
	Submit(ctx context.Context, intent schema.OrderIntent) (string, error)
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, intent schema.OrderIntent) (string, error)

func (f RouterFunc) Submit(ctx context.Context, intent schema.OrderIntent) (string, error) {
	return f(ctx, intent)
}
