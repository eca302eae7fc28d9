package legacy

import "github.com/unkn0wn-root/entcache/record"

// Record converts e into a record of schema keyed by the entity's ID.
// Structured attributes become nested records of their declared schema.
func (e *Entity) Record(schema *record.Schema) *record.Record {
	key := ""
	if e.Key != nil {
		key = e.Key.ID()
	}
	return toRecord(schema, key, e.Props)
}

func toRecord(schema *record.Schema, key string, props PropertyMap) *record.Record {
	rec := record.New(schema, key)
	for name, v := range props {
		if sub, ok := v.(PropertyMap); ok {
			a, _ := schema.Attr(name)
			rec.Set(name, toRecord(a.Nested, "", sub))
			continue
		}
		rec.Set(name, v)
	}
	return rec
}
