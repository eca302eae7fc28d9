package persist

import (
	"sort"

	"github.com/unkn0wn-root/entcache/record"
)

// KeyNamer maps one write to the cache keys it makes stale. The caller owns
// the naming scheme, including keys for views of things the record used to
// point to.
type KeyNamer interface {
	CacheKeys(kind string, changed record.Changes, refs record.References) []string
}

type KeyNamerFunc func(kind string, changed record.Changes, refs record.References) []string

func (f KeyNamerFunc) CacheKeys(kind string, changed record.Changes, refs record.References) []string {
	return f(kind, changed, refs)
}

// DefaultKeyNamer names "<kind>:<key>" for the record itself and
// "<kind>:<attr>:<fk>" for every affected reference.
var DefaultKeyNamer KeyNamer = KeyNamerFunc(defaultKeys)

func defaultKeys(kind string, _ record.Changes, refs record.References) []string {
	var out []string
	for _, attr := range refs.Attrs() {
		for _, fk := range refs.Keys(attr) {
			if attr == record.KeyAttr {
				out = append(out, kind+":"+fk)
			} else {
				out = append(out, kind+":"+attr+":"+fk)
			}
		}
	}
	return out
}

func dedupSorted(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	out := append([]string(nil), keys...)
	sort.Strings(out)
	w := 0
	for i, k := range out {
		if k == "" || (i > 0 && k == out[i-1]) {
			continue
		}
		out[w] = k
		w++
	}
	return out[:w]
}
