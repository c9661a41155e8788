package state

import (
	"context"
	"fmt"

	"tradeexec/internal/recorder"
	"tradeexec/internal/schema"
)

// ReplayConfig controls rebuilding a ledger from journaled fills.
type ReplayConfig struct {
	JournalDir      string
	SnapshotPath    string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
}

// ReplayResult contains the rebuilt ledger and journal metadata.
type ReplayResult struct {
	Ledger      *Ledger
	Fills       int
	LastSeq     uint64
	LastEventTs int64
}

// ReplayFills loads an optional base snapshot and folds every journaled fill past it.
// It is an audit path; the running engine never reads the journal.
func ReplayFills(ctx context.Context, cfg ReplayConfig) (ReplayResult, error) {
	if cfg.JournalDir == "" {
		return ReplayResult{}, fmt.Errorf("journal dir is empty")
	}
	ledger := NewLedger()
	var lastSeq uint64
	var lastEventTs int64

	if cfg.SnapshotPath != "" {
		snapshot, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return ReplayResult{}, err
		}
		ledger.Restore(snapshot.Positions)
		lastSeq = snapshot.LastSeq
		lastEventTs = snapshot.LastEventTs
	}

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:             cfg.JournalDir,
		FilePrefix:      cfg.FilePrefix,
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	})
	if err != nil {
		return ReplayResult{}, err
	}

	var fills int
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if lastSeq > 0 && header.Seq <= lastSeq {
			return nil
		}
		if lastSeq == 0 && lastEventTs > 0 && header.TsEvent <= lastEventTs {
			return nil
		}
		if header.Seq > lastSeq {
			lastSeq = header.Seq
		}
		if header.TsEvent > lastEventTs {
			lastEventTs = header.TsEvent
		}

		if header.Type != schema.EventFill {
			return nil
		}
		var fill schema.FillEvent
		if err := recorder.DecodeRecord(payload, &fill); err != nil {
			return fmt.Errorf("decode fill seq=%d: %w", header.Seq, err)
		}
		ledger.ApplyFill(fill)
		fills++
		return nil
	})
	if err != nil {
		return ReplayResult{}, err
	}

	return ReplayResult{
		Ledger:      ledger,
		Fills:       fills,
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
	}, nil
}
