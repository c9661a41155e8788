package recorder

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// Frame layout, little endian:
//
//	 0 magic "JRN1"
//	 4 layout version, header size
//	 8 event type, schema version, source, flags
//	16 payload length
//	20 seq, ts_event, ts_recv, trace id
//	52 reserved
//	56 payload, then crc32c over header and payload
const (
	frameVersion      uint16 = 1
	frameHeaderSize          = 56
	frameChecksumSize        = 4

	maxPayloadLen = uint64(^uint32(0))
)

var (
	frameMagic = [4]byte{'J', 'R', 'N', '1'}
	crcTable   = crc32.MakeTable(crc32.Castagnoli)
)

type frame [frameHeaderSize]byte

func frameSize(payloadLen int) int64 {
	return int64(frameHeaderSize + payloadLen + frameChecksumSize)
}

func (f *frame) put(header schema.EventHeader, payloadLen int) {
	le := binary.LittleEndian
	copy(f[0:4], frameMagic[:])
	le.PutUint16(f[4:6], frameVersion)
	le.PutUint16(f[6:8], frameHeaderSize)
	le.PutUint16(f[8:10], uint16(header.Type))
	le.PutUint16(f[10:12], header.Version)
	le.PutUint16(f[12:14], header.Source)
	le.PutUint16(f[14:16], header.Flags)
	le.PutUint32(f[16:20], uint32(payloadLen))
	le.PutUint64(f[20:28], header.Seq)
	le.PutUint64(f[28:36], uint64(header.TsEvent))
	le.PutUint64(f[36:44], uint64(header.TsRecv))
	le.PutUint64(f[44:52], header.TraceID)
	le.PutUint32(f[52:56], 0)
}

func (f *frame) parse() (schema.EventHeader, uint32, error) {
	le := binary.LittleEndian
	if !bytes.Equal(f[0:4], frameMagic[:]) {
		return schema.EventHeader{}, 0, exception.ErrJournalMagic
	}
	if v := le.Uint16(f[4:6]); v != frameVersion {
		return schema.EventHeader{}, 0, exception.ErrJournalVersion
	}
	if size := le.Uint16(f[6:8]); size != frameHeaderSize {
		return schema.EventHeader{}, 0, exception.ErrJournalHeader
	}
	return schema.EventHeader{
		Type:    schema.EventType(le.Uint16(f[8:10])),
		Version: le.Uint16(f[10:12]),
		Source:  le.Uint16(f[12:14]),
		Flags:   le.Uint16(f[14:16]),
		Seq:     le.Uint64(f[20:28]),
		TsEvent: int64(le.Uint64(f[28:36])),
		TsRecv:  int64(le.Uint64(f[36:44])),
		TraceID: le.Uint64(f[44:52]),
	}, le.Uint32(f[16:20]), nil
}

func (f *frame) checksum(payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, f[:])
	return crc32.Update(crc, crcTable, payload)
}
