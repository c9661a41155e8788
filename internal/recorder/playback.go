package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	xerrors "github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// PlaybackConfig controls journal playback behavior.
type PlaybackConfig struct {
	Dir             string
	FilePrefix      string
	Speed           float64
	UseRecvTime     bool
	DisableChecksum bool
	MaxPayloadSize  int
	// Types restricts delivery to the listed event types; empty delivers all.
	Types []schema.EventType
}

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Playback replays journal segments in file order.
type Playback struct {
	cfg   PlaybackConfig
	clock Clock
}

// NewPlayback validates the config and creates a playback engine.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Playback{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Playback) WithClock(clock Clock) *Playback {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Run replays journal records and calls the handler for each event.
// A frame cut short at the end of the newest segment is the trace of a
// crash during append and ends playback cleanly; anywhere else it is an error.
func (p *Playback) Run(ctx context.Context, handler func(schema.EventHeader, []byte) error) error {
	if handler == nil {
		return xerrors.Wrap(exception.ErrNilInstance, "playback handler")
	}
	files, err := Segments(p.cfg.Dir, p.cfg.FilePrefix)
	if err != nil {
		return xerrors.Wrap(err, "list journal segments").With("dir", p.cfg.Dir)
	}

	var prevTS int64
	for i, path := range files {
		err := p.playFile(ctx, path, handler, &prevTS)
		if err == nil {
			continue
		}
		if i == len(files)-1 && errors.Is(err, exception.ErrJournalTruncated) {
			logs.Infof("journal playback: ignoring torn tail of %s: %v", filepath.Base(path), err)
			return nil
		}
		return err
	}
	return nil
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	switch {
	case c.Dir == "":
		return xerrors.Wrap(exception.ErrInvalidArgument, "playback dir is empty")
	case c.Speed < 0:
		return xerrors.Wrap(exception.ErrInvalidArgument, "playback speed must be >= 0")
	case c.MaxPayloadSize < 0:
		return xerrors.Wrap(exception.ErrInvalidArgument, "playback max payload must be >= 0")
	}
	return nil
}

func (p *Playback) playFile(ctx context.Context, path string, handler func(schema.EventHeader, []byte) error, prevTS *int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: p.cfg.DisableChecksum,
		MaxPayloadSize:  p.cfg.MaxPayloadSize,
	})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, payload, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		if !p.wants(header.Type) {
			continue
		}
		if err := p.pace(ctx, header, prevTS); err != nil {
			return err
		}
		if err := handler(header, payload); err != nil {
			return err
		}
	}
}

// pace sleeps the recorded gap between consecutive events divided by Speed.
func (p *Playback) pace(ctx context.Context, header schema.EventHeader, prevTS *int64) error {
	if p.cfg.Speed <= 0 {
		return nil
	}
	current := header.TsEvent
	if p.cfg.UseRecvTime {
		current = header.TsRecv
	}
	if current <= 0 {
		return nil
	}
	prev := *prevTS
	*prevTS = current
	if prev <= 0 || current <= prev {
		return nil
	}
	return p.clock.Sleep(ctx, time.Duration(float64(current-prev)/p.cfg.Speed))
}

func (p *Playback) wants(t schema.EventType) bool {
	if len(p.cfg.Types) == 0 {
		return true
	}
	for _, want := range p.cfg.Types {
		if want == t {
			return true
		}
	}
	return false
}
