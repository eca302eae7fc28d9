package record

import (
	"reflect"
	"sort"
)

// KeyAttr is the pseudo-attribute under which a record's own primary key is
// reported in References.
const KeyAttr = "key"

// Record is an entity held in memory for one write. Attribute presence is
// explicit: a name mapped to nil is an explicit clear, a missing name was
// never set.
type Record struct {
	Key string

	schema *Schema
	attrs  map[string]any
	dirty  bool
	isNew  bool
}

func New(schema *Schema, key string) *Record {
	return &Record{Key: key, schema: schema, attrs: make(map[string]any)}
}

func (r *Record) Schema() *Schema { return r.schema }

func (r *Record) Kind() string {
	if r == nil || r.schema == nil {
		return ""
	}
	return r.schema.Kind
}

// Set stores v under name and marks the record dirty.
func (r *Record) Set(name string, v any) *Record {
	if r.attrs == nil {
		r.attrs = make(map[string]any)
	}
	r.attrs[name] = v
	r.dirty = true
	return r
}

// Clear records an explicit nil for name.
func (r *Record) Clear(name string) *Record { return r.Set(name, nil) }

// Unset removes name so it reads as never set.
func (r *Record) Unset(name string) *Record {
	if _, ok := r.attrs[name]; ok {
		delete(r.attrs, name)
		r.dirty = true
	}
	return r
}

// Lookup returns the value for name and whether it was set at all.
func (r *Record) Lookup(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.attrs[name]
	return v, ok
}

// Get is Lookup without the presence flag.
func (r *Record) Get(name string) any {
	v, _ := r.Lookup(name)
	return v
}

// Names returns the names that are set, explicit nils included, sorted.
func (r *Record) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.attrs))
	for n := range r.attrs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Record) Dirty() bool { return r != nil && r.dirty }
func (r *Record) IsNew() bool { return r != nil && r.isNew }

// Clone copies the record. Slice and map values get fresh backing storage so
// the copy can be changed without touching r. Nested records are cloned too.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		Key:    r.Key,
		schema: r.schema,
		attrs:  make(map[string]any, len(r.attrs)),
		dirty:  r.dirty,
		isNew:  r.isNew,
	}
	for k, v := range r.attrs {
		out.attrs[k] = cloneValue(v)
	}
	return out
}

// Equal compares key, kind and attributes. Flags are ignored.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Key != o.Key || r.Kind() != o.Kind() || len(r.attrs) != len(o.attrs) {
		return false
	}
	for k, v := range r.attrs {
		ov, ok := o.attrs[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *Record:
		return x.Clone()
	case []byte:
		return append([]byte(nil), x...)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e := rv.Index(i)
			if e.Kind() == reflect.Interface && !e.IsNil() {
				out.Index(i).Set(reflect.ValueOf(cloneValue(e.Interface())))
				continue
			}
			out.Index(i).Set(e)
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	}
	return v
}
