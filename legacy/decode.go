package legacy

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/unkn0wn-root/entcache/record"
)

// EntityProto field numbers.
const (
	entityKey         protowire.Number = 13
	entityProperty    protowire.Number = 14
	entityRawProperty protowire.Number = 15

	refApp       protowire.Number = 13
	refPath      protowire.Number = 14
	refNamespace protowire.Number = 20
	pathElement  protowire.Number = 1
	elemType     protowire.Number = 2
	elemID       protowire.Number = 3
	elemName     protowire.Number = 4

	propMeaning    protowire.Number = 1
	propMeaningURI protowire.Number = 2
	propName       protowire.Number = 3
	propMultiple   protowire.Number = 4
	propValue      protowire.Number = 5

	valInt64     protowire.Number = 1
	valBool      protowire.Number = 2
	valString    protowire.Number = 3
	valDouble    protowire.Number = 4
	valPoint     protowire.Number = 5
	pointX       protowire.Number = 6
	pointY       protowire.Number = 7
	valUser      protowire.Number = 8
	userEmail    protowire.Number = 9
	userDomain   protowire.Number = 10
	userNickname protowire.Number = 11
	userID       protowire.Number = 19
	valReference protowire.Number = 12
	refValApp    protowire.Number = 13
	refValPath   protowire.Number = 14
	refValType   protowire.Number = 15
	refValID     protowire.Number = 16
	refValName   protowire.Number = 17
	refValNS     protowire.Number = 20
)

// maxInflate caps a single decompressed blob.
const maxInflate = 32 << 20

// Entity is a decoded legacy entity.
type Entity struct {
	Key   *Key
	Props PropertyMap
}

func (e *Entity) Kind() string {
	if e.Key == nil {
		return ""
	}
	return e.Key.Kind()
}

type property struct {
	name       string
	meaning    uint64
	meaningURI string
	multiple   bool
	value      []byte
	offset     int
}

// Decode reads an EntityProto. With a schema, properties the schema does not
// declare are dropped and dotted names are folded into structured
// attributes; with a nil schema every property is kept under its raw name.
//
// Empty input is malformed. A schema decodes a stored record, so its key is
// required; without a schema keyless (embedded) entities are accepted.
func Decode(b []byte, schema *record.Schema) (*Entity, error) {
	if len(b) == 0 {
		return nil, &DecodeError{Field: "entity", Err: io.ErrUnexpectedEOF}
	}
	e := &Entity{Props: PropertyMap{}}
	err := walk(b, 0, "entity", func(num protowire.Number, typ protowire.Type, v []byte, off int) error {
		switch {
		case num == entityKey && typ == protowire.BytesType:
			k, err := decodeKey(v, off)
			if err != nil {
				return err
			}
			e.Key = k
		case (num == entityProperty || num == entityRawProperty) && typ == protowire.BytesType:
			p, err := decodeProperty(v, off)
			if err != nil {
				return err
			}
			return e.Props.add(schema, p.name, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if e.Key == nil && schema != nil {
		return nil, &DecodeError{Offset: len(b), Field: "entity", Err: fmt.Errorf("missing key for kind %s", schema.Kind)}
	}
	return e, nil
}

// add places p under name, following dotted names into structured attributes.
func (m PropertyMap) add(schema *record.Schema, name string, p property) error {
	if schema != nil {
		if _, ok := schema.Attr(name); !ok {
			head, rest, dotted := strings.Cut(name, ".")
			if !dotted {
				return nil
			}
			a, ok := schema.Attr(head)
			if !ok || a.Nested == nil {
				return nil
			}
			if p.multiple {
				return fmt.Errorf("%w: repeated structured property %q", ErrUnsupported, p.name)
			}
			sub, ok := m[head].(PropertyMap)
			if !ok {
				sub = PropertyMap{}
				m[head] = sub
			}
			return sub.add(a.Nested, rest, p)
		}
	}

	if p.meaning == meaningEmptyList {
		m[name] = []any{}
		return nil
	}
	v, err := decodeValue(p)
	if err != nil {
		return err
	}
	if !p.multiple {
		m[name] = v
		return nil
	}
	prev, seen := m[name]
	list, isList := prev.([]any)
	switch {
	case isList:
		m[name] = append(list, v)
	case seen:
		m[name] = []any{prev, v}
	default:
		m[name] = []any{v}
	}
	return nil
}

// walk iterates the fields of one message. Group fields are passed with their
// contents as v.
func walk(b []byte, base int, what string, fn func(num protowire.Number, typ protowire.Type, v []byte, off int) error) error {
	for off := 0; off < len(b); {
		num, typ, n := protowire.ConsumeTag(b[off:])
		if n < 0 {
			return &DecodeError{Offset: base + off, Field: what, Err: protowire.ParseError(n)}
		}
		start := off + n
		var v []byte
		switch typ {
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b[start:])
		case protowire.StartGroupType:
			v, n = protowire.ConsumeGroup(num, b[start:])
		default:
			n = protowire.ConsumeFieldValue(num, typ, b[start:])
			if n >= 0 {
				v = b[start : start+n]
			}
		}
		if n < 0 {
			return &DecodeError{Offset: base + start, Field: what, Err: protowire.ParseError(n)}
		}
		if err := fn(num, typ, v, base+start); err != nil {
			return err
		}
		off = start + n
	}
	return nil
}

func decodeKey(b []byte, base int) (*Key, error) {
	k := &Key{}
	err := walk(b, base, "key", func(num protowire.Number, typ protowire.Type, v []byte, off int) error {
		switch {
		case num == refApp && typ == protowire.BytesType:
			k.App = string(v)
		case num == refNamespace && typ == protowire.BytesType:
			k.Namespace = string(v)
		case num == refPath && typ == protowire.BytesType:
			return walk(v, off, "key.path", func(num protowire.Number, typ protowire.Type, v []byte, off int) error {
				if num != pathElement || typ != protowire.StartGroupType {
					return nil
				}
				el, err := decodeElement(v, off, elemType, elemID, elemName)
				if err != nil {
					return err
				}
				k.Path = append(k.Path, el)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return k, nil
}

func decodeElement(b []byte, base int, typeNum, idNum, nameNum protowire.Number) (PathElement, error) {
	var el PathElement
	err := walk(b, base, "path element", func(num protowire.Number, typ protowire.Type, v []byte, off int) error {
		switch {
		case num == typeNum && typ == protowire.BytesType:
			el.Kind = string(v)
		case num == nameNum && typ == protowire.BytesType:
			el.Name = string(v)
		case num == idNum && typ == protowire.VarintType:
			x, err := varint(v, off)
			if err != nil {
				return err
			}
			el.ID = int64(x)
		}
		return nil
	})
	return el, err
}

func decodeProperty(b []byte, base int) (property, error) {
	p := property{offset: base}
	hasName := false
	err := walk(b, base, "property", func(num protowire.Number, typ protowire.Type, v []byte, off int) error {
		switch {
		case num == propMeaning && typ == protowire.VarintType:
			x, err := varint(v, off)
			if err != nil {
				return err
			}
			p.meaning = x
		case num == propMeaningURI && typ == protowire.BytesType:
			p.meaningURI = string(v)
		case num == propName && typ == protowire.BytesType:
			p.name, hasName = string(v), true
		case num == propMultiple && typ == protowire.VarintType:
			x, err := varint(v, off)
			if err != nil {
				return err
			}
			p.multiple = x != 0
		case num == propValue && typ == protowire.BytesType:
			p.value = v
		}
		return nil
	})
	if err != nil {
		return p, err
	}
	if !hasName {
		return p, &DecodeError{Offset: base, Field: "property", Err: fmt.Errorf("missing name")}
	}
	return p, nil
}

// decodeValue reads a PropertyValue. A value with no member set is nil.
func decodeValue(p property) (any, error) {
	var out any
	err := walk(p.value, p.offset, "property "+p.name, func(num protowire.Number, typ protowire.Type, v []byte, off int) error {
		switch {
		case num == valInt64 && typ == protowire.VarintType:
			x, err := varint(v, off)
			if err != nil {
				return err
			}
			if p.meaning == meaningWhen {
				out = time.UnixMicro(int64(x)).UTC()
			} else {
				out = int64(x)
			}
		case num == valBool && typ == protowire.VarintType:
			x, err := varint(v, off)
			if err != nil {
				return err
			}
			out = x != 0
		case num == valDouble && typ == protowire.Fixed64Type:
			x, n := protowire.ConsumeFixed64(v)
			if n < 0 {
				return &DecodeError{Offset: off, Field: p.name, Err: protowire.ParseError(n)}
			}
			out = math.Float64frombits(x)
		case num == valString && typ == protowire.BytesType:
			s, err := decodeString(p, v, off)
			if err != nil {
				return err
			}
			out = s
		case num == valPoint && typ == protowire.StartGroupType:
			pt, err := decodePoint(v, off)
			if err != nil {
				return err
			}
			out = pt
		case num == valUser && typ == protowire.StartGroupType:
			u, err := decodeUser(v, off)
			if err != nil {
				return err
			}
			out = u
		case num == valReference && typ == protowire.StartGroupType:
			k, err := decodeReference(v, off)
			if err != nil {
				return err
			}
			out = k
		}
		return nil
	})
	return out, err
}

func decodeString(p property, raw []byte, off int) (any, error) {
	switch p.meaning {
	case meaningEntityProto:
		return nil, fmt.Errorf("%w: embedded entity in property %q", ErrUnsupported, p.name)
	case meaningBlobKey:
		return BlobKey(raw), nil
	case meaningBlob, meaningByteString:
		if p.meaningURI == "ZLIB" {
			return inflate(raw, off, p.name)
		}
		return bytes.Clone(raw), nil
	}
	// Everything else, TEXT included, is ASCII, then UTF-8, else raw bytes.
	if isASCII(raw) || utf8.Valid(raw) {
		return string(raw), nil
	}
	return bytes.Clone(raw), nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func inflate(raw []byte, off int, name string) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Offset: off, Field: name, Err: fmt.Errorf("zlib: %w", err)}
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxInflate+1))
	if err != nil {
		return nil, &DecodeError{Offset: off, Field: name, Err: fmt.Errorf("zlib: %w", err)}
	}
	if len(out) > maxInflate {
		return nil, &DecodeError{Offset: off, Field: name, Err: fmt.Errorf("zlib: inflated size exceeds %d bytes", maxInflate)}
	}
	return out, nil
}

func decodePoint(b []byte, base int) (GeoPoint, error) {
	var pt GeoPoint
	err := walk(b, base, "point", func(num protowire.Number, typ protowire.Type, v []byte, off int) error {
		if typ != protowire.Fixed64Type || (num != pointX && num != pointY) {
			return nil
		}
		x, n := protowire.ConsumeFixed64(v)
		if n < 0 {
			return &DecodeError{Offset: off, Field: "point", Err: protowire.ParseError(n)}
		}
		if num == pointX {
			pt.Lat = math.Float64frombits(x)
		} else {
			pt.Lng = math.Float64frombits(x)
		}
		return nil
	})
	return pt, err
}

func decodeUser(b []byte, base int) (User, error) {
	var u User
	err := walk(b, base, "user", func(num protowire.Number, typ protowire.Type, v []byte, _ int) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case userEmail:
			u.Email = string(v)
		case userDomain:
			u.AuthDomain = string(v)
		case userNickname:
			u.Nickname = string(v)
		case userID:
			u.UserID = string(v)
		}
		return nil
	})
	return u, err
}

func decodeReference(b []byte, base int) (Key, error) {
	var k Key
	err := walk(b, base, "reference", func(num protowire.Number, typ protowire.Type, v []byte, off int) error {
		switch {
		case num == refValApp && typ == protowire.BytesType:
			k.App = string(v)
		case num == refValNS && typ == protowire.BytesType:
			k.Namespace = string(v)
		case num == refValPath && typ == protowire.StartGroupType:
			el, err := decodeElement(v, off, refValType, refValID, refValName)
			if err != nil {
				return err
			}
			k.Path = append(k.Path, el)
		}
		return nil
	})
	return k, err
}

func varint(v []byte, off int) (uint64, error) {
	x, n := protowire.ConsumeVarint(v)
	if n < 0 {
		return 0, &DecodeError{Offset: off, Field: "varint", Err: protowire.ParseError(n)}
	}
	return x, nil
}
