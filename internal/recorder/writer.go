package recorder

import (
	"context"
	"encoding/binary"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// Writer appends frames to segment files from a bounded queue.
// Segments are never rewritten; a new one opens on size or age rotation.
type Writer struct {
	cfg Config
	ch  chan pending
	wg  sync.WaitGroup
	err atomic.Value

	started atomic.Bool
	closed  atomic.Bool
}

type errBox struct{ err error }

type pending struct {
	header  schema.EventHeader
	payload []byte
}

// NewWriter creates a journal writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create journal dir").With("dir", cfg.Dir)
	}
	return &Writer{cfg: cfg, ch: make(chan pending, cfg.QueueSize)}, nil
}

// Start runs the writer loop in a new goroutine. Cancelling ctx drains
// what is already queued and stops the loop.
func (w *Writer) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return exception.ErrJournalStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops accepting frames, flushes and syncs the open segment.
func (w *Writer) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer loop, if any.
func (w *Writer) Err() error {
	if v, ok := w.err.Load().(errBox); ok {
		return v.err
	}
	return nil
}

// TryAppend enqueues a frame without blocking.
func (w *Writer) TryAppend(header schema.EventHeader, payload []byte) error {
	switch {
	case w.closed.Load():
		return exception.ErrJournalClosed
	case !w.started.Load():
		return exception.ErrJournalNotStarted
	case uint64(len(payload)) > maxPayloadLen:
		return exception.ErrJournalPayloadTooLong
	}
	if err := w.Err(); err != nil {
		return err
	}
	if header.Version == 0 {
		header.Version = schema.SchemaVersion
	}
	if w.cfg.CopyPayload && len(payload) > 0 {
		payload = append([]byte(nil), payload...)
	}

	select {
	case w.ch <- pending{header: header, payload: payload}:
		return nil
	default:
		return exception.ErrJournalQueueFull
	}
}

func (w *Writer) run(ctx context.Context) {
	var (
		seg   *segment
		segNo uint64
		hdr   frame
	)
	flushC, stopFlush := ticker(w.cfg.FlushInterval)
	defer stopFlush()
	syncC, stopSync := ticker(w.cfg.SyncInterval)
	defer stopSync()
	defer func() {
		if err := seg.close(); err != nil {
			w.setErr(err)
		}
	}()

	write := func(p pending) bool {
		if err := w.write(&seg, &segNo, &hdr, p); err != nil {
			w.setErr(err)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case p, ok := <-w.ch:
					if !ok || !write(p) {
						return
					}
				default:
					return
				}
			}
		case p, ok := <-w.ch:
			if !ok || !write(p) {
				return
			}
		case <-flushC:
			if err := seg.flush(); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := seg.sync(); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) write(seg **segment, segNo *uint64, hdr *frame, p pending) error {
	now := time.Now().UTC()
	size := frameSize(len(p.payload))
	if w.rotate(*seg, now, size) {
		if err := (*seg).close(); err != nil {
			return err
		}
		next, err := createSegment(w.cfg.Dir, w.cfg.FilePrefix, w.cfg.BufferSize, segNo, now)
		if err != nil {
			return errors.Wrap(err, "open journal segment")
		}
		*seg = next
	}

	hdr.put(p.header, len(p.payload))
	var sum [frameChecksumSize]byte
	binary.LittleEndian.PutUint32(sum[:], hdr.checksum(p.payload))

	buf := (*seg).buf
	if _, err := buf.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := buf.Write(p.payload); err != nil {
		return err
	}
	if _, err := buf.Write(sum[:]); err != nil {
		return err
	}
	(*seg).size += size
	return nil
}

func (w *Writer) rotate(seg *segment, now time.Time, next int64) bool {
	switch {
	case seg == nil:
		return true
	case w.cfg.SegmentMaxBytes > 0 && seg.size > 0 && seg.size+next > w.cfg.SegmentMaxBytes:
		return true
	case w.cfg.SegmentMaxDuration > 0 && now.Sub(seg.openedAt) >= w.cfg.SegmentMaxDuration:
		return true
	}
	return false
}

func (w *Writer) setErr(err error) {
	if err != nil {
		w.err.CompareAndSwap(nil, errBox{err: err})
	}
}

func ticker(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}
