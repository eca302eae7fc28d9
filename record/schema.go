// Package record holds in-memory entities, their per-kind merge policy and
// the pure Reconcile merge used by the write path.
package record

import "sort"

// Policy is how an attribute merges when a record is written again.
// The zero Policy is Immutable so undeclared behaviour is the safe one.
type Policy uint8

const (
	// Immutable attributes keep the value they were created with.
	Immutable Policy = iota
	// Overwrite replaces the stored value when the candidate sets one.
	Overwrite
	// Union appends the candidate's new list elements when auto-union is on,
	// and behaves like Overwrite otherwise.
	Union
)

func (p Policy) String() string {
	switch p {
	case Immutable:
		return "immutable"
	case Overwrite:
		return "overwrite"
	case Union:
		return "union"
	default:
		return "policy(?)"
	}
}

// Mutable reports whether writes after creation may change the attribute.
func (p Policy) Mutable() bool { return p == Overwrite || p == Union }

type Attr struct {
	Policy Policy
	// Nullable lets a candidate clear the attribute with an explicit nil.
	Nullable bool
	// Reference marks attributes holding foreign keys. They feed cache
	// invalidation through AffectedReferences.
	Reference bool
	// Nested is set for structured attributes whose value is a *Record of
	// another schema. The legacy decoder uses it for dotted property names.
	Nested *Schema
}

// Schema is the per-kind policy table. Declare one per entity kind, usually as
// a package-level variable:
//
//	var Team = &record.Schema{Kind: "Team", Attrs: map[string]record.Attr{
//		"nickname": {Policy: record.Overwrite, Nullable: true},
//		"events":   {Policy: record.Union, Reference: true},
//	}}
type Schema struct {
	Kind  string
	Attrs map[string]Attr
}

// Attr returns the declaration for name. Undeclared attributes report
// ok=false and an Immutable zero Attr.
func (s *Schema) Attr(name string) (Attr, bool) {
	if s == nil {
		return Attr{}, false
	}
	a, ok := s.Attrs[name]
	return a, ok
}

// Names returns declared attribute names, sorted.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Attrs))
	for n := range s.Attrs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// References returns the names of Reference attributes, sorted.
func (s *Schema) References() []string {
	var out []string
	for _, n := range s.Names() {
		if s.Attrs[n].Reference {
			out = append(out, n)
		}
	}
	return out
}
