// Package strategy defines the strategy contract, the context strategies
// act through and the registry that builds them by id.
package strategy

import (
	"context"
	"time"

	"tradeexec/internal/schema"
)

// Strategy reacts to market data and fills with order intents.
// Callbacks are never invoked concurrently for one instance.
type Strategy interface {
	ID() string
	OnEvent(ctx context.Context, sc *Context, ev schema.MarketEvent) (Response, error)
	OnFill(ctx context.Context, sc *Context, fill schema.FillEvent) (Response, error)
	OnInterval(ctx context.Context, sc *Context, now time.Time) (Response, error)
	Shutdown(ctx context.Context, sc *Context) error
	SnapshotState() ([]byte, error)
	RestoreState(data []byte) error
}

// Warmer is implemented by strategies that load history before their first
// event. Run Warmup before market data starts flowing.
type Warmer interface {
	Warmup(ctx context.Context) error
}

// Nop provides no-op optional hooks for embedding.
type Nop struct{}

func (Nop) OnFill(context.Context, *Context, schema.FillEvent) (Response, error) {
	return Response{}, nil
}

func (Nop) OnInterval(context.Context, *Context, time.Time) (Response, error) {
	return Response{}, nil
}

func (Nop) Shutdown(context.Context, *Context) error {
	return nil
}

// ActionKind classifies a side effect requested alongside intents.
type ActionKind uint16

const (
	ActionNone ActionKind = iota
	ActionAlert
)

func (k ActionKind) String() string {
	switch k {
	case ActionAlert:
		return "Alert"
	default:
		return "None"
	}
}

// Action is a non-order side effect such as an operator alert.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Message string     `json:"message,omitempty"`
}

// Response is what a callback asks the engine to do, in order.
type Response struct {
	Intents []schema.OrderIntent
	Actions []Action
}

// Empty reports whether the response carries nothing.
func (r Response) Empty() bool {
	return len(r.Intents) == 0 && len(r.Actions) == 0
}

// Alert builds a response holding one alert action.
func Alert(message string) Response {
	return Response{Actions: []Action{{Kind: ActionAlert, Message: message}}}
}
