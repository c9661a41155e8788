package state

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"tradeexec/internal/schema"
)

const sizeTolerance = 1e-9

// Snapshot captures ledger positions at a point in time.
type Snapshot struct {
	Timestamp   int64             `json:"timestamp"`
	LastSeq     uint64            `json:"lastSeq"`
	LastEventTs int64             `json:"lastEventTs"`
	Positions   []schema.Position `json:"positions"`
}

// SnapshotWithMeta builds a snapshot with journal metadata.
func (l *Ledger) SnapshotWithMeta(lastSeq uint64, lastEventTs int64) Snapshot {
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		Positions:   l.Snapshot(),
	}
}

// WriteSnapshot writes a snapshot to disk as JSON, replacing the file atomically.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := sonic.ConfigStd.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks if two snapshots hold the same net sizes.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[string]float64, len(expected.Positions))
	for _, entry := range expected.Positions {
		expectedMap[entry.Instrument] = entry.Size
	}
	for _, entry := range actual.Positions {
		want, ok := expectedMap[entry.Instrument]
		if !ok {
			return fmt.Errorf("snapshot missing instrument: %s", entry.Instrument)
		}
		if math.Abs(want-entry.Size) > sizeTolerance {
			return fmt.Errorf("snapshot size mismatch: instrument=%s expected=%v actual=%v", entry.Instrument, want, entry.Size)
		}
	}
	return nil
}
