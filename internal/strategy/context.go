package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradeexec/internal/obs"
	"tradeexec/internal/og"
	"tradeexec/internal/recorder"
	"tradeexec/internal/schema"
	"tradeexec/internal/state"
	"tradeexec/pkg/exception"
)

// Context is the strategy's handle on positions, the order router and the journal.
type Context struct {
	router  og.Router
	ledger  *state.Ledger
	journal *recorder.Journal
	metrics *obs.Metrics
}

// NewContext wires a strategy context. journal and metrics may be nil.
func NewContext(router og.Router, ledger *state.Ledger, journal *recorder.Journal, metrics *obs.Metrics) (*Context, error) {
	if router == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "order router")
	}
	if ledger == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "position ledger")
	}
	return &Context{router: router, ledger: ledger, journal: journal, metrics: metrics}, nil
}

// Positions returns a sorted copy of every position.
func (c *Context) Positions() []schema.Position {
	return c.ledger.Snapshot()
}

// Net returns the signed net size for instrument.
func (c *Context) Net(instrument string) float64 {
	return c.ledger.Net(instrument)
}

// Journal returns the audit journal, nil when journaling is off.
func (c *Context) Journal() *recorder.Journal {
	return c.journal
}

// Metrics returns the metrics sink, nil when disabled.
func (c *Context) Metrics() *obs.Metrics {
	return c.metrics
}

// Record appends an audit record; failures are logged and counted, never returned.
func (c *Context) Record(ctx context.Context, eventType schema.EventType, record any) {
	if err := c.journal.Append(ctx, eventType, record); err != nil {
		c.metrics.IncJournalError()
		logs.Errorf("journal %s: %+v", eventType, err)
	}
}

// SubmitIntent assigns an idempotency token when absent, routes the intent
// and journals it. The router is not retried.
func (c *Context) SubmitIntent(ctx context.Context, intent schema.OrderIntent) (string, error) {
	if intent.Token == "" {
		intent.Token = uuid.NewString()
	}
	start := time.Now()
	id, err := c.router.Submit(ctx, intent)
	c.metrics.ObserveSubmit(time.Since(start), err)
	if err != nil {
		return "", errors.Wrapf(err, "submit %s", intent.Describe()).With("token", intent.Token)
	}
	c.Record(ctx, schema.EventOrderIntent, SubmittedIntent{OrderIntent: intent, OrderID: id})
	return id, nil
}

// SubmittedIntent is the journal record of a routed intent.
type SubmittedIntent struct {
	schema.OrderIntent
	OrderID string `json:"order_id"`
}
