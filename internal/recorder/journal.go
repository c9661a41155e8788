package recorder

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tradeexec/internal/obs"
	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// Journal appends timestamped, JSON encoded records to the segment writer.
// Appends are best effort: a failure is reported to the caller but never blocks.
type Journal struct {
	w      *Writer
	source uint16
	seq    atomic.Uint64
}

// OpenJournal creates the journal directory and starts the writer loop.
func OpenJournal(ctx context.Context, cfg Config, source uint16) (*Journal, error) {
	w, err := NewWriter(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "new journal writer")
	}
	if err := w.Start(ctx); err != nil {
		return nil, errors.Wrap(err, "start journal writer")
	}
	return &Journal{w: w, source: source}, nil
}

// Append encodes record and enqueues it with the trace id carried by ctx.
func (j *Journal) Append(ctx context.Context, eventType schema.EventType, record any) error {
	return j.AppendAt(ctx, eventType, 0, record)
}

// AppendAt is Append with an explicit event time; zero means now.
func (j *Journal) AppendAt(ctx context.Context, eventType schema.EventType, tsEvent int64, record any) error {
	if j == nil {
		return nil
	}
	payload, err := sonic.Marshal(record)
	if err != nil {
		return errors.Wrapf(exception.ErrJournalAppend, "encode %s record: %v", eventType, err)
	}
	now := time.Now().UTC().UnixNano()
	if tsEvent == 0 {
		tsEvent = now
	}
	header := schema.NewHeader(eventType, j.source, j.seq.Add(1), tsEvent, now)
	header.TraceID = obs.TraceFrom(ctx)
	if err := j.w.TryAppend(header, payload); err != nil {
		return errors.Wrapf(exception.ErrJournalAppend, "append %s record: %v", eventType, err)
	}
	return nil
}

// LastSeq returns the sequence number of the latest appended record.
func (j *Journal) LastSeq() uint64 {
	if j == nil {
		return 0
	}
	return j.seq.Load()
}

// Close flushes buffered records and stops the writer.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.w.Close()
}

// DecodeRecord decodes a journal payload written by Append.
func DecodeRecord(payload []byte, v any) error {
	return sonic.Unmarshal(payload, v)
}
