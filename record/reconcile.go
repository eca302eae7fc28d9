package record

import (
	"reflect"
	"sort"
)

// Changes is the sorted set of attribute names a write changed.
type Changes []string

func (c Changes) Has(name string) bool {
	i := sort.SearchStrings(c, name)
	return i < len(c) && c[i] == name
}

func (c Changes) Empty() bool { return len(c) == 0 }

// Result is the outcome of Reconcile.
type Result struct {
	Record  *Record
	Changed Changes
	IsNew   bool
}

// Reconcile merges candidate into existing and reports what changed.
//
// With no existing record the candidate is taken as is and every attribute it
// sets to a non-nil value is reported. Otherwise only attributes the schema
// declares mutable can move:
//
//   - Union with autoUnion: existing elements followed by the candidate's
//     elements not already present, in order.
//   - Otherwise the candidate's value when it set one. An explicit nil only
//     counts for Nullable attributes.
//
// An attribute is reported iff its final value differs from the existing one.
// Reconcile does no I/O and never modifies its arguments, so applying the same
// candidate to its own result changes nothing.
func Reconcile(candidate, existing *Record, autoUnion bool) Result {
	if candidate == nil {
		if existing == nil {
			return Result{}
		}
		final := existing.Clone()
		final.dirty, final.isNew = false, false
		return Result{Record: final}
	}
	if existing == nil {
		final := candidate.Clone()
		final.isNew, final.dirty = true, true
		var changed Changes
		for _, n := range final.Names() {
			if final.attrs[n] != nil {
				changed = append(changed, n)
			}
		}
		return Result{Record: final, Changed: changed, IsNew: true}
	}

	schema := candidate.schema
	if schema == nil {
		schema = existing.schema
	}
	final := existing.Clone()
	final.dirty, final.isNew = false, false
	if final.schema == nil {
		final.schema = schema
	}

	var changed Changes
	for _, name := range schema.Names() {
		a := schema.Attrs[name]
		if !a.Policy.Mutable() {
			continue
		}
		cv, cset := candidate.attrs[name]
		ev := existing.attrs[name]

		var next any
		switch {
		case a.Policy == Union && autoUnion:
			if !cset || cv == nil {
				continue
			}
			next = union(ev, cv)
		case cset && (cv != nil || a.Nullable):
			next = cloneValue(cv)
		default:
			continue
		}
		if Equal(next, ev) {
			continue
		}
		final.attrs[name] = next
		changed = append(changed, name)
	}
	final.dirty = len(changed) > 0
	return Result{Record: final, Changed: changed}
}

// union returns existing followed by the elements of candidate it lacks.
// When nothing is new existing is returned as is. The result keeps the
// existing slice type when the candidate's elements fit in it, and falls back
// to []any otherwise. Non-list candidates replace the value.
func union(existing, candidate any) any {
	cv := reflect.ValueOf(candidate)
	if !isList(cv) {
		return cloneValue(candidate)
	}
	ev := reflect.ValueOf(existing)
	if existing == nil {
		ev = reflect.MakeSlice(reflect.SliceOf(cv.Type().Elem()), 0, 0)
	} else if !isList(ev) {
		ev = reflect.ValueOf([]any{existing})
	}

	var added []reflect.Value
	for i := 0; i < cv.Len(); i++ {
		e := cv.Index(i)
		if e.Kind() == reflect.Interface && !e.IsNil() {
			e = e.Elem()
		}
		if containsValue(ev, e) || containsSlice(added, e) {
			continue
		}
		added = append(added, e)
	}
	if len(added) == 0 {
		if existing == nil {
			return cloneValue(candidate)
		}
		return existing
	}

	typ := ev.Type()
	if typ.Kind() == reflect.Array {
		typ = reflect.SliceOf(typ.Elem())
	}
	elem := typ.Elem()
	for _, e := range added {
		if !e.Type().AssignableTo(elem) {
			typ, elem = reflect.TypeOf([]any(nil)), reflect.TypeOf((*any)(nil)).Elem()
			break
		}
	}
	out := reflect.MakeSlice(typ, 0, ev.Len()+len(added))
	for i := 0; i < ev.Len(); i++ {
		out = reflect.Append(out, ev.Index(i).Convert(elem))
	}
	for _, e := range added {
		out = reflect.Append(out, e.Convert(elem))
	}
	return out.Interface()
}

func isList(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	k := v.Kind()
	return (k == reflect.Slice || k == reflect.Array) && v.Type().Elem().Kind() != reflect.Uint8
}

func containsValue(list, e reflect.Value) bool {
	for i := 0; i < list.Len(); i++ {
		if Equal(list.Index(i).Interface(), e.Interface()) {
			return true
		}
	}
	return false
}

func containsSlice(vs []reflect.Value, e reflect.Value) bool {
	for _, v := range vs {
		if Equal(v.Interface(), e.Interface()) {
			return true
		}
	}
	return false
}
