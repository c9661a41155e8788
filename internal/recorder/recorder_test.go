package recorder

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

func encodeFrames(t *testing.T, payloads ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	for i, p := range payloads {
		var hdr frame
		hdr.put(schema.NewHeader(schema.EventFill, 1, uint64(i+1), int64(i+1), int64(i+1)), len(p))
		buf.Write(hdr[:])
		buf.WriteString(p)
		sum := hdr.checksum([]byte(p))
		buf.Write([]byte{byte(sum), byte(sum >> 8), byte(sum >> 16), byte(sum >> 24)})
	}
	return buf.Bytes()
}

func TestReaderRoundTrip(t *testing.T) {
	data := encodeFrames(t, `{"a":1}`, ``, `{"b":2}`)
	r := NewReader(bytes.NewReader(data), ReaderOptions{})

	var got []string
	for {
		h, payload, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, uint64(len(got)+1), h.Seq)
		got = append(got, string(payload))
	}
	assert.Equal(t, []string{`{"a":1}`, ``, `{"b":2}`}, got)
	assert.Equal(t, int64(len(data)), r.Offset())
}

func TestReaderChecksumMismatch(t *testing.T) {
	data := encodeFrames(t, `{"a":1}`)
	data[frameHeaderSize] ^= 0xff

	_, _, err := NewReader(bytes.NewReader(data), ReaderOptions{}).Next()
	require.ErrorIs(t, err, exception.ErrJournalChecksum)

	_, payload, err := NewReader(bytes.NewReader(data), ReaderOptions{DisableChecksum: true}).Next()
	require.NoError(t, err)
	assert.Len(t, payload, 7)
}

func TestReaderRejectsBadMagicAndLargePayload(t *testing.T) {
	data := encodeFrames(t, `{"a":1}`)
	bad := append([]byte(nil), data...)
	bad[0] = 'X'
	_, _, err := NewReader(bytes.NewReader(bad), ReaderOptions{}).Next()
	require.ErrorIs(t, err, exception.ErrJournalMagic)

	_, _, err = NewReader(bytes.NewReader(data), ReaderOptions{MaxPayloadSize: 3}).Next()
	require.ErrorIs(t, err, exception.ErrJournalPayloadTooLong)
}

func TestReaderTruncatedFrame(t *testing.T) {
	data := encodeFrames(t, `{"a":1}`, `{"b":2}`)
	r := NewReader(bytes.NewReader(data[:len(data)-3]), ReaderOptions{})

	_, _, err := r.Next()
	require.NoError(t, err)
	_, _, err = r.Next()
	require.ErrorIs(t, err, exception.ErrJournalTruncated)
}

func TestWriterRotatesSegments(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.SegmentMaxBytes = frameSize(10) * 2
	j, err := OpenJournal(t.Context(), cfg, 1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(t.Context(), schema.EventFill, "0123456"))
	}
	require.NoError(t, j.Close())

	files, err := Segments(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	var seqs []uint64
	require.NoError(t, pb.Run(t.Context(), func(h schema.EventHeader, _ []byte) error {
		seqs = append(seqs, h.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs)
}

func TestWriterLifecycleErrors(t *testing.T) {
	w, err := NewWriter(DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	require.ErrorIs(t, w.TryAppend(schema.EventHeader{}, nil), exception.ErrJournalNotStarted)
	require.NoError(t, w.Start(t.Context()))
	require.ErrorIs(t, w.Start(t.Context()), exception.ErrJournalStarted)
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.TryAppend(schema.EventHeader{}, nil), exception.ErrJournalClosed)
}

func TestPlaybackIgnoresTornTail(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(t.Context(), DefaultConfig(dir), 1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.Append(t.Context(), schema.EventFill, schema.FillEvent{Instrument: "BTC", Size: 1}))
	}
	require.NoError(t, j.Close())

	files, err := Segments(dir, "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	info, err := os.Stat(files[0])
	require.NoError(t, err)
	require.NoError(t, os.Truncate(files[0], info.Size()-2))

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	var n int
	require.NoError(t, pb.Run(t.Context(), func(schema.EventHeader, []byte) error {
		n++
		return nil
	}))
	assert.Equal(t, 2, n)
}

func TestPlaybackTornSegmentBeforeNewestFails(t *testing.T) {
	dir := t.TempDir()
	data := encodeFrames(t, `{"a":1}`, `{"b":2}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "journal-20240101-000000-000001.jnl"), data[:len(data)-1], 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "journal-20240101-000000-000002.jnl"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other-20240101-000000-000001.jnl"), data, 0o644))

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	err = pb.Run(t.Context(), func(schema.EventHeader, []byte) error { return nil })
	require.ErrorIs(t, err, exception.ErrJournalTruncated)
}

func TestPlaybackTypesFilter(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(t.Context(), DefaultConfig(dir), 1)
	require.NoError(t, err)
	require.NoError(t, j.Append(t.Context(), schema.EventMarketData, 1))
	require.NoError(t, j.Append(t.Context(), schema.EventFill, 2))
	require.NoError(t, j.Append(t.Context(), schema.EventMarketData, 3))
	require.NoError(t, j.Close())

	pb, err := NewPlayback(PlaybackConfig{Dir: dir, Types: []schema.EventType{schema.EventMarketData}})
	require.NoError(t, err)
	var seqs []uint64
	require.NoError(t, pb.Run(t.Context(), func(h schema.EventHeader, _ []byte) error {
		assert.Equal(t, schema.EventMarketData, h.Type)
		seqs = append(seqs, h.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{1, 3}, seqs)
}

type recordingClock struct {
	sleeps []time.Duration
}

func (c *recordingClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return nil
}

func TestPlaybackPacesByEventTime(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(t.Context(), DefaultConfig(dir), 1)
	require.NoError(t, err)
	base := time.Unix(1_700_000_000, 0).UnixNano()
	for _, offset := range []time.Duration{0, 2 * time.Second, 3 * time.Second} {
		require.NoError(t, j.AppendAt(t.Context(), schema.EventMarketData, base+int64(offset), "x"))
	}
	require.NoError(t, j.Close())

	clock := &recordingClock{}
	pb, err := NewPlayback(PlaybackConfig{Dir: dir, Speed: 2})
	require.NoError(t, err)
	pb.WithClock(clock)
	require.NoError(t, pb.Run(t.Context(), func(schema.EventHeader, []byte) error { return nil }))
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, clock.sleeps)
}

func TestPlaybackValidate(t *testing.T) {
	_, err := NewPlayback(PlaybackConfig{})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
	_, err = NewPlayback(PlaybackConfig{Dir: "x", Speed: -1})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
}
