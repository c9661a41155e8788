// Package storage persists strategy snapshots under string keys.
package storage

import (
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tradeexec/pkg/exception"
)

// SnapshotStore loads and saves serializable snapshots by name.
// Load reports false with a nil error when the name was never saved.
// Save fully replaces earlier content; a partial write is never observable.
type SnapshotStore interface {
	Load(name string, v any) (bool, error)
	Save(name string, v any) error
}

var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// EscapeName maps an arbitrary string into the snapshot name alphabet.
// Letters, digits and '.' pass through; every other byte becomes -XX (hex),
// so distinct inputs never share a name.
func EscapeName(part string) string {
	const hex = "0123456789abcdef"
	var b strings.Builder
	b.Grow(len(part))
	for i := 0; i < len(part); i++ {
		c := part[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.':
			b.WriteByte(c)
		default:
			b.WriteByte('-')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

func checkName(name string) error {
	if !validName.MatchString(name) {
		return errors.Wrapf(exception.ErrInvalidArgument, "snapshot name %q", name)
	}
	return nil
}

func encode(name string, v any) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrSnapshotEncode, "%s: %v", name, err)
	}
	return data, nil
}

func decode(name string, data []byte, v any) error {
	if err := sonic.Unmarshal(data, v); err != nil {
		return errors.Wrapf(exception.ErrSnapshotDecode, "%s: %v", name, err)
	}
	return nil
}
