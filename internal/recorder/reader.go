package recorder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int
}

// Reader decodes journal frames sequentially.
type Reader struct {
	r       *bufio.Reader
	opts    ReaderOptions
	hdr     frame
	payload []byte
	offset  int64
}

// NewReader wraps an io.Reader with journal decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{r: bufio.NewReader(r), opts: opts}
}

// Offset is the byte position of the next frame.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next returns the next record header and payload. The payload is only
// valid until the next call. A clean end of input returns io.EOF; input
// ending inside a frame returns exception.ErrJournalTruncated.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	n, err := io.ReadFull(r.r, r.hdr[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return schema.EventHeader{}, nil, io.EOF
		}
		return schema.EventHeader{}, nil, r.cut(err)
	}

	header, payloadLen, err := r.hdr.parse()
	if err != nil {
		return header, nil, fmt.Errorf("frame at %d: %w", r.offset, err)
	}
	if uint64(payloadLen) > maxPayloadLen || (r.opts.MaxPayloadSize > 0 && payloadLen > uint32(r.opts.MaxPayloadSize)) {
		return header, nil, fmt.Errorf("frame at %d: %w", r.offset, exception.ErrJournalPayloadTooLong)
	}

	if cap(r.payload) < int(payloadLen) {
		r.payload = make([]byte, payloadLen)
	}
	r.payload = r.payload[:payloadLen]
	if _, err := io.ReadFull(r.r, r.payload); err != nil {
		return header, nil, r.cut(err)
	}

	var sum [frameChecksumSize]byte
	if _, err := io.ReadFull(r.r, sum[:]); err != nil {
		return header, nil, r.cut(err)
	}
	if !r.opts.DisableChecksum && binary.LittleEndian.Uint32(sum[:]) != r.hdr.checksum(r.payload) {
		return header, nil, fmt.Errorf("frame at %d seq=%d: %w", r.offset, header.Seq, exception.ErrJournalChecksum)
	}

	r.offset += frameSize(len(r.payload))
	return header, r.payload, nil
}

func (r *Reader) cut(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("frame at %d: %w", r.offset, exception.ErrJournalTruncated)
	}
	return err
}
