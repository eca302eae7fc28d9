package entcache

import (
	"bytes"
	"fmt"
	"math"
	"reflect"

	"github.com/unkn0wn-root/entcache/codec"
	"github.com/unkn0wn-root/entcache/internal/wire"
)

// Tag identifies which member of the Value union is set. The numeric values
// are wire constants.
type Tag byte

const (
	TagBytes Tag = Tag(wire.TagBytes)
	TagText  Tag = Tag(wire.TagText)
	TagBlob  Tag = Tag(wire.TagBlob)
	TagInt   Tag = Tag(wire.TagInt)
	TagBool  Tag = Tag(wire.TagBool)
)

func (t Tag) String() string {
	switch t {
	case TagBytes:
		return "bytes"
	case TagText:
		return "text"
	case TagBlob:
		return "blob"
	case TagInt:
		return "int"
	case TagBool:
		return "bool"
	default:
		return fmt.Sprintf("tag(%d)", byte(t))
	}
}

// Value is a cached value: exactly one of raw bytes, text, an opaque blob,
// an integer or a boolean. The zero Value holds nothing and cannot be stored.
type Value struct {
	tag   Tag
	valid bool
	b     []byte // bytes, blob
	s     string
	i     int64
	t     bool
}

func Bytes(b []byte) Value { return Value{tag: TagBytes, valid: true, b: b} }
func Text(s string) Value  { return Value{tag: TagText, valid: true, s: s} }
func Int(i int64) Value    { return Value{tag: TagInt, valid: true, i: i} }
func Bool(t bool) Value    { return Value{tag: TagBool, valid: true, t: t} }

// Blob wraps an already-serialized payload. Its contents are never inspected.
func Blob(b []byte) Value { return Value{tag: TagBlob, valid: true, b: b} }

func (v Value) Tag() Tag      { return v.tag }
func (v Value) IsValid() bool { return v.valid }

func (v Value) AsBytes() ([]byte, bool) { return v.b, v.valid && v.tag == TagBytes }
func (v Value) AsText() (string, bool)  { return v.s, v.valid && v.tag == TagText }
func (v Value) AsBlob() ([]byte, bool)  { return v.b, v.valid && v.tag == TagBlob }
func (v Value) AsInt() (int64, bool)    { return v.i, v.valid && v.tag == TagInt }
func (v Value) AsBool() (bool, bool)    { return v.t, v.valid && v.tag == TagBool }

// Equal compares tag and payload. Nil and empty byte slices are equal.
func (v Value) Equal(o Value) bool {
	if v.valid != o.valid || v.tag != o.tag {
		return false
	}
	switch v.tag {
	case TagBytes, TagBlob:
		return bytes.Equal(v.b, o.b)
	case TagText:
		return v.s == o.s
	case TagInt:
		return v.i == o.i
	case TagBool:
		return v.t == o.t
	}
	return !v.valid
}

func (v Value) String() string {
	if !v.valid {
		return "<invalid>"
	}
	switch v.tag {
	case TagText:
		return fmt.Sprintf("text(%q)", v.s)
	case TagInt:
		return fmt.Sprintf("int(%d)", v.i)
	case TagBool:
		return fmt.Sprintf("bool(%t)", v.t)
	default:
		return fmt.Sprintf("%s(%d bytes)", v.tag, len(v.b))
	}
}

// MarshalValue frames v as ver | tag | payload.
func MarshalValue(v Value) ([]byte, error) {
	if !v.valid || !wire.ValidTag(byte(v.tag)) {
		return nil, &ContractError{Op: "encode", Err: ErrUnknownTag}
	}
	var payload []byte
	switch v.tag {
	case TagBytes, TagBlob:
		payload = v.b
	case TagText:
		payload = []byte(v.s)
	case TagInt:
		payload = wire.AppendInt(nil, v.i)
	case TagBool:
		payload = wire.AppendBool(nil, v.t)
	}
	return wire.Encode(byte(v.tag), payload), nil
}

// UnmarshalValue is all-or-nothing: it returns wire.ErrVersion for frames
// written by another version and wire.ErrCorrupt for anything malformed.
// Returned byte slices are copies and do not alias b.
func UnmarshalValue(b []byte) (Value, error) {
	tag, payload, err := wire.Decode(b)
	if err != nil {
		return Value{}, err
	}
	switch Tag(tag) {
	case TagBytes:
		return Bytes(bytes.Clone(payload)), nil
	case TagText:
		return Text(string(payload)), nil
	case TagBlob:
		return Blob(bytes.Clone(payload)), nil
	case TagInt:
		i, err := wire.Int(payload)
		if err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case TagBool:
		t, err := wire.Bool(payload)
		if err != nil {
			return Value{}, err
		}
		return Bool(t), nil
	}
	return Value{}, wire.ErrCorrupt
}

// Encoder turns arbitrary Go values into Values and back. Anything that is
// not bytes, text, a boolean or an integer becomes a blob serialized with
// the blob codec.
type Encoder struct {
	blob codec.Codec[any]
}

func NewEncoder(blob codec.Codec[any]) Encoder { return Encoder{blob: blob} }

type selector func(rv reflect.Value) (Value, bool)

// selectors is the encoder's type priority, highest first:
// bytes > text > boolean > integer. Blob is the fallback.
// Boolean must stay ahead of integer.
var selectors = [...]selector{
	selectBytes,
	selectText,
	selectBool,
	selectInt,
}

func selectBytes(rv reflect.Value) (Value, bool) {
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return Bytes(rv.Bytes()), true
	}
	return Value{}, false
}

func selectText(rv reflect.Value) (Value, bool) {
	if rv.Kind() == reflect.String {
		return Text(rv.String()), true
	}
	return Value{}, false
}

func selectBool(rv reflect.Value) (Value, bool) {
	if rv.Kind() == reflect.Bool {
		return Bool(rv.Bool()), true
	}
	return Value{}, false
}

func selectInt(rv reflect.Value) (Value, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, false
		}
		return Int(int64(u)), true
	}
	return Value{}, false
}

// ValueOf classifies x. A Value passes through unchanged.
func (e Encoder) ValueOf(x any) (Value, error) {
	if v, ok := x.(Value); ok {
		return v, nil
	}
	if x != nil {
		rv := reflect.ValueOf(x)
		for _, sel := range selectors {
			if v, ok := sel(rv); ok {
				return v, nil
			}
		}
	}
	if e.blob == nil {
		return Value{}, &ContractError{Op: "encode", Err: fmt.Errorf("no blob codec for %T", x)}
	}
	b, err := e.blob.Encode(x)
	if err != nil {
		return Value{}, fmt.Errorf("entcache: encode blob %T: %w", x, err)
	}
	return Blob(b), nil
}

// Interface is the inverse of ValueOf: bytes, string, int64 and bool come
// back as themselves, blobs are decoded with the blob codec.
func (e Encoder) Interface(v Value) (any, error) {
	if !v.valid {
		return nil, &ContractError{Op: "decode", Err: ErrUnknownTag}
	}
	switch v.tag {
	case TagBytes:
		return v.b, nil
	case TagText:
		return v.s, nil
	case TagInt:
		return v.i, nil
	case TagBool:
		return v.t, nil
	case TagBlob:
		if e.blob == nil {
			return nil, &ContractError{Op: "decode", Err: fmt.Errorf("no blob codec")}
		}
		return e.blob.Decode(v.b)
	}
	return nil, &ContractError{Op: "decode", Err: ErrUnknownTag}
}

// DecodeBlob reads a blob back into T with a codec of the caller's choosing.
func DecodeBlob[T any](v Value, c codec.Codec[T]) (T, error) {
	b, ok := v.AsBlob()
	if !ok {
		var zero T
		return zero, fmt.Errorf("entcache: value is %s, not blob", v.tag)
	}
	return c.Decode(b)
}
