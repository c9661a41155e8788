package exception

import "github.com/yanun0323/errors"

// Journal writer errors
var (
	ErrJournalQueueFull      = errors.New("journal: queue full")
	ErrJournalClosed         = errors.New("journal: writer closed")
	ErrJournalNotStarted     = errors.New("journal: writer not started")
	ErrJournalStarted        = errors.New("journal: writer already started")
	ErrJournalPayloadTooLong = errors.New("journal: payload too large")
)

// Journal record errors
var (
	ErrJournalChecksum = errors.New("journal: checksum mismatch")
	ErrJournalMagic    = errors.New("journal: invalid magic")
	ErrJournalVersion  = errors.New("journal: unsupported record version")
	ErrJournalHeader   = errors.New("journal: invalid header size")

	// ErrJournalTruncated marks a record cut short by a crash during append.
	ErrJournalTruncated = errors.New("journal: truncated record")
)
