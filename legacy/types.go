// Package legacy reads entities written by the previous storage generation
// (EntityProto, protobuf wire format). Only decoding is supported; nothing
// produces this format any more.
package legacy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Property meanings that change how a value is read.
const (
	meaningWhen        = 7
	meaningBlob        = 14
	meaningText        = 15
	meaningByteString  = 16
	meaningBlobKey     = 17
	meaningEntityProto = 19
	meaningEmptyList   = 24
)

// ErrUnsupported is returned for encodings this decoder deliberately does not
// handle. Losing such data silently would be worse than failing.
var ErrUnsupported = errors.New("legacy: unsupported encoding")

// DecodeError reports malformed input.
type DecodeError struct {
	Offset int
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("legacy: decode %s at byte %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type PathElement struct {
	Kind string
	ID   int64
	Name string
}

func (p PathElement) String() string {
	if p.Name != "" {
		return p.Kind + ":" + p.Name
	}
	return p.Kind + ":" + strconv.FormatInt(p.ID, 10)
}

// Key is a foreign key: an ancestor path ending at the entity itself.
type Key struct {
	App       string
	Namespace string
	Path      []PathElement
}

// Kind is the kind of the last path element.
func (k Key) Kind() string {
	if len(k.Path) == 0 {
		return ""
	}
	return k.Path[len(k.Path)-1].Kind
}

// ID is the name or numeric id of the last path element.
func (k Key) ID() string {
	if len(k.Path) == 0 {
		return ""
	}
	leaf := k.Path[len(k.Path)-1]
	if leaf.Name != "" {
		return leaf.Name
	}
	return strconv.FormatInt(leaf.ID, 10)
}

// String is the ID, which is how records refer to each other.
func (k Key) String() string { return k.ID() }

// PathString renders the full path, e.g. "Event:2019cmptx/Match:2019cmptx_f1m1".
func (k Key) PathString() string {
	parts := make([]string, len(k.Path))
	for i, p := range k.Path {
		parts[i] = p.String()
	}
	return strings.Join(parts, "/")
}

type GeoPoint struct {
	Lat float64
	Lng float64
}

type User struct {
	Email      string
	AuthDomain string
	Nickname   string
	UserID     string
}

// BlobKey names a blob held in the old blobstore.
type BlobKey string

// PropertyMap holds decoded properties. Structured properties nest another
// PropertyMap; repeated properties are []any.
type PropertyMap map[string]any
