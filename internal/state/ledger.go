package state

import (
	"sort"
	"sync"
	"sync/atomic"

	"tradeexec/internal/schema"
)

// Ledger maps instrument to net position.
// Fills on different instruments never contend; fills on the same instrument serialize.
type Ledger struct {
	slots sync.Map // string -> *slot
	count atomic.Int64
}

type slot struct {
	mu sync.Mutex
	// ready is set by the first fill applied under mu; unready slots are invisible.
	ready bool
	pos   schema.Position
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// ApplyFill folds a fill into the instrument's position and returns the result.
func (l *Ledger) ApplyFill(fill schema.FillEvent) schema.Position {
	s, _ := l.slots.LoadOrStore(fill.Instrument, &slot{})
	sl := s.(*slot)

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if !sl.ready {
		sl.ready = true
		sl.pos = schema.Position{Instrument: fill.Instrument}
		l.count.Add(1)
	}
	sl.pos.Size = applyFill(&sl.pos, fill)
	return sl.pos
}

// applyFill returns the next net size and overwrites the entry price on increasing fills.
func applyFill(pos *schema.Position, fill schema.FillEvent) float64 {
	increasing := pos.Size == 0 || (pos.Size > 0) == fill.IsBuy
	if increasing {
		pos.EntryPrice = fill.Price
	}
	return pos.Size + fill.SignedSize()
}

// Snapshot returns a copy of every position sorted by instrument.
func (l *Ledger) Snapshot() []schema.Position {
	out := make([]schema.Position, 0, l.count.Load())
	l.slots.Range(func(_, value any) bool {
		sl := value.(*slot)
		sl.mu.Lock()
		if sl.ready {
			out = append(out, sl.pos)
		}
		sl.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Instrument < out[j].Instrument
	})
	return out
}

// Position returns the current position of one instrument.
func (l *Ledger) Position(instrument string) (schema.Position, bool) {
	s, ok := l.slots.Load(instrument)
	if !ok {
		return schema.Position{}, false
	}
	sl := s.(*slot)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if !sl.ready {
		return schema.Position{}, false
	}
	return sl.pos, true
}

// Net returns the signed size of one instrument, zero when unknown.
func (l *Ledger) Net(instrument string) float64 {
	pos, _ := l.Position(instrument)
	return pos.Size
}

// Count returns the number of tracked instruments.
func (l *Ledger) Count() int {
	return int(l.count.Load())
}

// Restore replaces the ledger content with the given positions.
// It must not race with ApplyFill; audit tools call it before replay.
func (l *Ledger) Restore(positions []schema.Position) {
	l.slots.Range(func(key, _ any) bool {
		l.slots.Delete(key)
		return true
	})
	l.count.Store(0)
	for _, pos := range positions {
		l.slots.Store(pos.Instrument, &slot{ready: true, pos: pos})
		l.count.Add(1)
	}
}
