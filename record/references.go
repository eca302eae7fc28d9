package record

import (
	"fmt"
	"sort"
)

// References maps an attribute name to the foreign keys it touched in one
// write. It feeds invalidation and is not kept after the write.
type References map[string]map[string]struct{}

func (r References) Add(attr string, keys ...string) {
	if len(keys) == 0 {
		return
	}
	set, ok := r[attr]
	if !ok {
		set = make(map[string]struct{}, len(keys))
		r[attr] = set
	}
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
}

// Attrs returns the attributes with at least one key, sorted.
func (r References) Attrs() []string {
	out := make([]string, 0, len(r))
	for a, set := range r {
		if len(set) > 0 {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

// Keys returns the keys recorded for attr, sorted.
func (r References) Keys(attr string) []string {
	set := r[attr]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// All returns every key across attributes, deduplicated and sorted.
func (r References) All() []string {
	seen := make(map[string]struct{})
	for _, set := range r {
		for k := range set {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AffectedReferences collects the foreign keys a write touched: the record's
// own key under KeyAttr, the current targets of every changed Reference
// attribute and, for new records, of every Reference attribute.
//
// Only current values are considered. Keys an attribute pointed to before the
// write are the key namer's concern.
func AffectedReferences(final *Record, changed Changes, isNew bool) References {
	refs := make(References)
	if final == nil {
		return refs
	}
	refs.Add(KeyAttr, final.Key)

	attrs := make(map[string]struct{}, len(changed))
	for _, n := range changed {
		if a, ok := final.schema.Attr(n); ok && a.Reference {
			attrs[n] = struct{}{}
		}
	}
	if isNew {
		for _, n := range final.schema.References() {
			attrs[n] = struct{}{}
		}
	}
	for n := range attrs {
		refs.Add(n, refKeys(final.Get(n))...)
	}
	return refs
}

// refKeys flattens a reference value into key strings. Strings, string
// slices, []any of those and fmt.Stringer values (legacy keys) are
// understood; anything else contributes nothing.
func refKeys(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return []string{x}
	case []string:
		return x
	case []any:
		var out []string
		for _, e := range x {
			out = append(out, refKeys(e)...)
		}
		return out
	case fmt.Stringer:
		return []string{x.String()}
	}
	return nil
}
