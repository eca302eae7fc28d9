package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var matchSchema = &Schema{Kind: "Match", Attrs: map[string]Attr{
	"tags":      {Policy: Union},
	"score":     {Policy: Overwrite},
	"video":     {Policy: Overwrite, Nullable: true},
	"event":     {Policy: Immutable, Reference: true},
	"teams":     {Policy: Union, Reference: true},
	"played_at": {Policy: Overwrite},
}}

func match(key string) *Record { return New(matchSchema, key) }

func TestScenarioUnion(t *testing.T) {
	existing := match("2019cmptx_f1m1").Set("tags", []string{"a", "b"}).Set("score", 10)
	candidate := match("2019cmptx_f1m1").Set("tags", []string{"b", "c"})

	res := Reconcile(candidate, existing, true)

	require.NotNil(t, res.Record)
	assert.False(t, res.IsNew)
	assert.Equal(t, Changes{"tags"}, res.Changed)
	assert.Equal(t, []string{"a", "b", "c"}, res.Record.Get("tags"))
	assert.Equal(t, 10, res.Record.Get("score"))
	assert.True(t, res.Record.Dirty())
}

func TestScenarioOverwriteWithoutAutoUnion(t *testing.T) {
	existing := match("m").Set("tags", []string{"a", "b"}).Set("score", 10)
	candidate := match("m").Set("tags", []string{"b", "c"})

	res := Reconcile(candidate, existing, false)

	assert.Equal(t, Changes{"tags"}, res.Changed)
	assert.Equal(t, []string{"b", "c"}, res.Record.Get("tags"))
	assert.Equal(t, 10, res.Record.Get("score"))
}

func TestNewRecord(t *testing.T) {
	candidate := match("m").Set("score", 3).Set("video", nil).Set("event", "2019cmptx")

	res := Reconcile(candidate, nil, true)

	assert.True(t, res.IsNew)
	assert.True(t, res.Record.IsNew())
	assert.True(t, res.Record.Dirty())
	assert.Equal(t, Changes{"event", "score"}, res.Changed)
	_, set := res.Record.Lookup("video")
	assert.True(t, set, "explicit nil is kept on a new record")
}

func TestUnsetAttributeIsNotOverwritten(t *testing.T) {
	existing := match("m").Set("score", 10).Set("video", "yt:abc")
	candidate := match("m")

	res := Reconcile(candidate, existing, false)

	assert.Empty(t, res.Changed)
	assert.False(t, res.Record.Dirty())
	assert.Equal(t, 10, res.Record.Get("score"))
	assert.Equal(t, "yt:abc", res.Record.Get("video"))
}

func TestExplicitNilOnlyClearsNullable(t *testing.T) {
	existing := match("m").Set("score", 10).Set("video", "yt:abc")
	candidate := match("m").Clear("score").Clear("video")

	res := Reconcile(candidate, existing, false)

	assert.Equal(t, Changes{"video"}, res.Changed)
	assert.Equal(t, 10, res.Record.Get("score"))
	v, set := res.Record.Lookup("video")
	assert.True(t, set)
	assert.Nil(t, v)
}

func TestImmutableAndUndeclaredNeverChange(t *testing.T) {
	existing := match("m").Set("event", "2019cmptx").Set("legacy_flag", true)
	candidate := match("m").Set("event", "2020casj").Set("legacy_flag", false)

	res := Reconcile(candidate, existing, true)

	assert.Empty(t, res.Changed)
	assert.Equal(t, "2019cmptx", res.Record.Get("event"))
	assert.Equal(t, true, res.Record.Get("legacy_flag"))
}

func TestEqualValueIsNotAChange(t *testing.T) {
	when := time.Date(2019, 4, 20, 15, 0, 0, 0, time.UTC)
	existing := match("m").Set("score", 10).Set("played_at", when)
	candidate := match("m").Set("score", 10).Set("played_at", when.In(time.FixedZone("CDT", -5*3600)))

	res := Reconcile(candidate, existing, false)

	assert.Empty(t, res.Changed)
}

func TestUnionMixedSliceTypes(t *testing.T) {
	existing := match("m").Set("teams", []string{"frc254"})
	candidate := match("m").Set("teams", []any{"frc254", "frc1678", "frc1678"})

	res := Reconcile(candidate, existing, true)

	assert.Equal(t, Changes{"teams"}, res.Changed)
	assert.Equal(t, []string{"frc254", "frc1678"}, res.Record.Get("teams"))
}

func TestUnionOntoUnsetAttribute(t *testing.T) {
	existing := match("m")
	candidate := match("m").Set("tags", []string{"x", "x", "y"})

	res := Reconcile(candidate, existing, true)

	assert.Equal(t, Changes{"tags"}, res.Changed)
	assert.Equal(t, []string{"x", "y"}, res.Record.Get("tags"))
}

func TestReconcileDoesNotMutateInputs(t *testing.T) {
	tags := []string{"a", "b"}
	existing := match("m").Set("tags", tags)
	candidate := match("m").Set("tags", []string{"c"})
	before := existing.Clone()

	res := Reconcile(candidate, existing, true)
	res.Record.Get("tags").([]string)[0] = "z"

	assert.True(t, existing.Equal(before))
	assert.Equal(t, []string{"a", "b"}, tags)
}

func TestReconcileNilInputs(t *testing.T) {
	assert.NotPanics(t, func() {
		res := Reconcile(nil, nil, true)
		assert.Nil(t, res.Record)

		res = Reconcile(nil, match("m").Set("score", 1), true)
		assert.Empty(t, res.Changed)
		assert.Equal(t, 1, res.Record.Get("score"))
	})
}

func TestIdempotence(t *testing.T) {
	cases := []struct {
		name      string
		candidate *Record
		existing  *Record
	}{
		{"new", match("m").Set("tags", []string{"a"}).Set("score", 1), nil},
		{"union", match("m").Set("tags", []string{"b", "c"}), match("m").Set("tags", []string{"a", "b"})},
		{"overwrite", match("m").Set("score", 7), match("m").Set("score", 3)},
		{"clear", match("m").Clear("video"), match("m").Set("video", "yt:x")},
		{"noop", match("m"), match("m").Set("score", 3)},
	}
	for _, tc := range cases {
		for _, autoUnion := range []bool{true, false} {
			first := Reconcile(tc.candidate, tc.existing, autoUnion)
			second := Reconcile(tc.candidate, first.Record, autoUnion)

			assert.Empty(t, second.Changed, "%s autoUnion=%v", tc.name, autoUnion)
			assert.True(t, second.Record.Equal(first.Record), "%s autoUnion=%v", tc.name, autoUnion)
		}
	}
}

// A is reported iff its final value differs from the stored one.
func TestExactness(t *testing.T) {
	existing := match("m").
		Set("tags", []string{"a"}).
		Set("score", 10).
		Set("video", "yt:x")
	candidate := match("m").
		Set("tags", []string{"a"}).
		Set("score", 11).
		Set("video", "yt:x").
		Set("event", "other")

	for _, autoUnion := range []bool{true, false} {
		res := Reconcile(candidate, existing, autoUnion)
		for _, name := range matchSchema.Names() {
			before, _ := existing.Lookup(name)
			after, _ := res.Record.Lookup(name)
			assert.Equal(t, !Equal(before, after), res.Changed.Has(name), "attr %s autoUnion=%v", name, autoUnion)
		}
	}
}

func TestChangesHas(t *testing.T) {
	c := Changes{"a", "c", "d"}
	assert.True(t, c.Has("c"))
	assert.False(t, c.Has("b"))
	assert.False(t, Changes(nil).Has("a"))
	assert.True(t, Changes(nil).Empty())
}
