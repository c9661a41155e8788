package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const segmentExt = ".jnl"

// Segments lists the journal segments of dir with the given prefix in append order.
func Segments(dir, prefix string) ([]string, error) {
	if prefix == "" {
		prefix = defaultFilePrefix
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isSegment(entry.Name(), prefix) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isSegment(name, prefix string) bool {
	return strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, segmentExt)
}

// segmentName sorts lexically in open order: <prefix>-<yyyymmdd-hhmmss>-<n>.jnl.
func segmentName(prefix string, openedAt time.Time, n uint64) string {
	return fmt.Sprintf("%s-%s-%06d%s", prefix, openedAt.Format("20060102-150405"), n, segmentExt)
}

type segment struct {
	file     *os.File
	buf      *bufio.Writer
	size     int64
	openedAt time.Time
}

func createSegment(dir, prefix string, bufSize int, n *uint64, now time.Time) (*segment, error) {
	for {
		*n++
		path := filepath.Join(dir, segmentName(prefix, now, *n))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, err
		}
		return &segment{file: file, buf: bufio.NewWriterSize(file, bufSize), openedAt: now}, nil
	}
}

func (s *segment) flush() error {
	if s == nil {
		return nil
	}
	return s.buf.Flush()
}

func (s *segment) sync() error {
	if s == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	if s == nil {
		return nil
	}
	if err := s.sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
