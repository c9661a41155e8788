package recorder

import (
	"time"

	"github.com/yanun0323/errors"

	"tradeexec/pkg/exception"
)

const (
	defaultSegmentMaxBytes int64 = 256 << 20
	defaultQueueSize             = 4096
	defaultBufferSize            = 64 * 1024
	defaultFilePrefix            = "journal"
	defaultFlushInterval         = 200 * time.Millisecond
)

var defaultSegmentMaxDuration = time.Hour

// Config controls journal writer behavior.
type Config struct {
	Dir string
	// SegmentMaxBytes and SegmentMaxDuration rotate to a new segment.
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	// QueueSize bounds frames waiting for the writer loop; a full queue rejects appends.
	QueueSize  int
	BufferSize int
	FilePrefix string
	// FlushInterval pushes buffered frames to the file; SyncInterval also fsyncs.
	FlushInterval time.Duration
	SyncInterval  time.Duration
	// CopyPayload copies payloads on append so callers may reuse their buffers.
	CopyPayload bool
}

// DefaultConfig returns a baseline configuration for the journal writer.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                dir,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		QueueSize:          defaultQueueSize,
		BufferSize:         defaultBufferSize,
		FilePrefix:         defaultFilePrefix,
		FlushInterval:      defaultFlushInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return errors.Wrap(exception.ErrInvalidArgument, "journal dir is empty")
	case c.SegmentMaxBytes <= 0:
		return errors.Wrap(exception.ErrInvalidArgument, "journal segment max bytes must be > 0")
	case c.QueueSize <= 0:
		return errors.Wrap(exception.ErrInvalidArgument, "journal queue size must be > 0")
	case c.BufferSize <= 0:
		return errors.Wrap(exception.ErrInvalidArgument, "journal buffer size must be > 0")
	case c.FilePrefix == "":
		return errors.Wrap(exception.ErrInvalidArgument, "journal file prefix is empty")
	case c.FlushInterval < 0, c.SyncInterval < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "journal flush and sync intervals must be >= 0")
	}
	return nil
}
