package wire

import (
	"errors"
)

// Version is the only header version this build reads or writes.
const Version byte = 1

// Type tags. Values are part of the wire format and must never be renumbered.
const (
	TagBytes byte = 0
	TagText  byte = 1
	TagBlob  byte = 2
	TagInt   byte = 3
	TagBool  byte = 4

	maxTag = TagBool
)

const headerLen = 2

var (
	ErrCorrupt = errors.New("entcache: corrupt entry")
	ErrVersion = errors.New("entcache: unsupported entry version")
)

// Encode frames payload as: ver(1) | tag(1) | payload.
func Encode(tag byte, payload []byte) []byte {
	b := make([]byte, 0, headerLen+len(payload))
	b = append(b, Version, tag)
	return append(b, payload...)
}

// Decode splits a frame into tag and payload. The payload aliases b.
// A frame written by any other version fails with ErrVersion and is never
// partially interpreted.
func Decode(b []byte) (tag byte, payload []byte, err error) {
	if len(b) < headerLen {
		return 0, nil, ErrCorrupt
	}
	if b[0] != Version {
		return 0, nil, ErrVersion
	}
	if b[1] > maxTag {
		return 0, nil, ErrCorrupt
	}
	return b[1], b[headerLen:], nil
}

// ValidTag reports whether tag belongs to the closed tag set.
func ValidTag(tag byte) bool { return tag <= maxTag }

// AppendInt appends v as little-endian two's complement using the fewest
// bytes that still carry the sign. Zero encodes as a single 0x00.
func AppendInt(dst []byte, v int64) []byte {
	for {
		b := byte(v)
		v >>= 8
		dst = append(dst, b)
		if (v == 0 && b&0x80 == 0) || (v == -1 && b&0x80 != 0) {
			return dst
		}
	}
}

// Int reads a little-endian two's complement integer of 1..8 bytes.
func Int(p []byte) (int64, error) {
	if len(p) == 0 || len(p) > 8 {
		return 0, ErrCorrupt
	}
	var u uint64
	for i := len(p) - 1; i >= 0; i-- {
		u = u<<8 | uint64(p[i])
	}
	shift := uint(64 - 8*len(p))
	return int64(u<<shift) >> shift, nil
}

func AppendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

func Bool(p []byte) (bool, error) {
	if len(p) != 1 {
		return false, ErrCorrupt
	}
	switch p[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrCorrupt
	}
}
