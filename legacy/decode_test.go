package legacy

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/unkn0wn-root/entcache/record"
)

// ---- EntityProto builders ----

func bytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func varintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func groupField(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.StartGroupType)
	b = append(b, body...)
	return protowire.AppendTag(b, num, protowire.EndGroupType)
}

func strVal(s string) []byte { return bytesField(nil, valString, []byte(s)) }
func rawVal(b []byte) []byte { return bytesField(nil, valString, b) }
func intVal(i int64) []byte  { return varintField(nil, valInt64, uint64(i)) }
func boolVal(t bool) []byte  { return varintField(nil, valBool, protowire.EncodeBool(t)) }

func doubleVal(f float64) []byte {
	b := protowire.AppendTag(nil, valDouble, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(f))
}

func pointVal(lat, lng float64) []byte {
	var g []byte
	g = protowire.AppendTag(g, pointX, protowire.Fixed64Type)
	g = protowire.AppendFixed64(g, math.Float64bits(lat))
	g = protowire.AppendTag(g, pointY, protowire.Fixed64Type)
	g = protowire.AppendFixed64(g, math.Float64bits(lng))
	return groupField(nil, valPoint, g)
}

func userVal(email, domain string) []byte {
	g := bytesField(nil, userEmail, []byte(email))
	g = bytesField(g, userDomain, []byte(domain))
	return groupField(nil, valUser, g)
}

func refVal(app string, elems ...PathElement) []byte {
	g := bytesField(nil, refValApp, []byte(app))
	for _, el := range elems {
		e := bytesField(nil, refValType, []byte(el.Kind))
		if el.Name != "" {
			e = bytesField(e, refValName, []byte(el.Name))
		} else {
			e = varintField(e, refValID, uint64(el.ID))
		}
		g = groupField(g, refValPath, e)
	}
	return groupField(nil, valReference, g)
}

type propFixture struct {
	name     string
	meaning  uint64
	uri      string
	multiple bool
	value    []byte
}

func (p propFixture) bytes() []byte {
	var b []byte
	if p.meaning != 0 {
		b = varintField(b, propMeaning, p.meaning)
	}
	if p.uri != "" {
		b = bytesField(b, propMeaningURI, []byte(p.uri))
	}
	b = bytesField(b, propName, []byte(p.name))
	b = varintField(b, propMultiple, protowire.EncodeBool(p.multiple))
	return bytesField(b, propValue, p.value)
}

func keyBytes(app string, elems ...PathElement) []byte {
	var path []byte
	for _, el := range elems {
		e := bytesField(nil, elemType, []byte(el.Kind))
		if el.Name != "" {
			e = bytesField(e, elemName, []byte(el.Name))
		} else {
			e = varintField(e, elemID, uint64(el.ID))
		}
		path = groupField(path, pathElement, e)
	}
	b := bytesField(nil, refApp, []byte(app))
	return bytesField(b, refPath, path)
}

func entity(key []byte, props ...propFixture) []byte {
	var b []byte
	if key != nil {
		b = bytesField(b, entityKey, key)
	}
	for i, p := range props {
		num := entityProperty
		if i%2 == 1 {
			num = entityRawProperty
		}
		b = bytesField(b, num, p.bytes())
	}
	return b
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// ---- tests ----

var eventKey = keyBytes("app", PathElement{Kind: "Event", Name: "2019cmptx"})

var (
	locationSchema = &record.Schema{Kind: "Location", Attrs: map[string]record.Attr{
		"city":    {Policy: record.Overwrite},
		"country": {Policy: record.Overwrite},
	}}
	eventSchema = &record.Schema{Kind: "Event", Attrs: map[string]record.Attr{
		"name":        {Policy: record.Overwrite},
		"short_name":  {Policy: record.Overwrite},
		"city":        {Policy: record.Overwrite},
		"year":        {Policy: record.Immutable},
		"official":    {Policy: record.Overwrite},
		"rating":      {Policy: record.Overwrite},
		"start_date":  {Policy: record.Overwrite},
		"webcast":     {Policy: record.Union},
		"geo":         {Policy: record.Overwrite},
		"owner":       {Policy: record.Overwrite},
		"parent":      {Policy: record.Overwrite, Reference: true},
		"details":     {Policy: record.Overwrite},
		"summary":     {Policy: record.Overwrite},
		"blob_ref":    {Policy: record.Overwrite},
		"raw":         {Policy: record.Overwrite},
		"location":    {Policy: record.Overwrite, Nested: locationSchema},
		"divisions":   {Policy: record.Union},
		"nested_blob": {Policy: record.Overwrite},
	}}
)

func TestDecodeScalarTypes(t *testing.T) {
	when := time.Date(2019, 4, 17, 0, 0, 0, 0, time.UTC)
	b := entity(
		keyBytes("s~tbatv-prod-hrd", PathElement{Kind: "Event", Name: "2019cmptx"}),
		propFixture{name: "name", value: strVal("Einstein Field")},
		propFixture{name: "city", value: strVal("Zürich")},
		propFixture{name: "raw", value: rawVal([]byte{0xff, 0xfe})},
		propFixture{name: "year", value: intVal(2019)},
		propFixture{name: "official", value: boolVal(true)},
		propFixture{name: "rating", value: doubleVal(-1.5)},
		propFixture{name: "start_date", meaning: meaningWhen, value: intVal(when.UnixMicro())},
		propFixture{name: "geo", value: pointVal(29.75, -95.36)},
		propFixture{name: "owner", value: userVal("admin@example.com", "gmail.com")},
		propFixture{name: "parent", value: refVal("s~tbatv-prod-hrd", PathElement{Kind: "District", Name: "2019fim"})},
		propFixture{name: "summary", meaning: meaningText, value: strVal("long text")},
		propFixture{name: "blob_ref", meaning: meaningBlobKey, value: strVal("AMIfv9")},
		propFixture{name: "details", meaning: meaningBlob, uri: "ZLIB", value: rawVal(zlibBytes(t, []byte(`{"a":1}`)))},
		propFixture{name: "nested_blob", meaning: meaningByteString, value: rawVal([]byte{1, 2})},
		propFixture{name: "short_name"},
	)

	e, err := Decode(b, eventSchema)
	require.NoError(t, err)

	require.NotNil(t, e.Key)
	assert.Equal(t, "Event", e.Kind())
	assert.Equal(t, "2019cmptx", e.Key.ID())
	assert.Equal(t, "s~tbatv-prod-hrd", e.Key.App)

	p := e.Props
	assert.Equal(t, "Einstein Field", p["name"])
	assert.Equal(t, "Zürich", p["city"])
	assert.Equal(t, []byte{0xff, 0xfe}, p["raw"])
	assert.Equal(t, int64(2019), p["year"])
	assert.Equal(t, true, p["official"])
	assert.Equal(t, -1.5, p["rating"])
	assert.Equal(t, when, p["start_date"])
	assert.Equal(t, GeoPoint{Lat: 29.75, Lng: -95.36}, p["geo"])
	assert.Equal(t, User{Email: "admin@example.com", AuthDomain: "gmail.com"}, p["owner"])
	assert.Equal(t, "long text", p["summary"])
	assert.Equal(t, BlobKey("AMIfv9"), p["blob_ref"])
	assert.Equal(t, []byte(`{"a":1}`), p["details"])
	assert.Equal(t, []byte{1, 2}, p["nested_blob"])
	assert.Nil(t, p["short_name"])

	parent, ok := p["parent"].(Key)
	require.True(t, ok)
	assert.Equal(t, "2019fim", parent.String())
	assert.Equal(t, "District:2019fim", parent.PathString())
}

func TestDecodeDropsUnknownProperties(t *testing.T) {
	b := entity(eventKey,
		propFixture{name: "name", value: strVal("x")},
		propFixture{name: "removed_in_2016", value: intVal(1)},
		propFixture{name: "unknown.child", value: intVal(1)},
	)
	e, err := Decode(b, eventSchema)
	require.NoError(t, err)
	assert.Equal(t, PropertyMap{"name": "x"}, e.Props)
}

func TestDecodeDottedCreatesParentLazily(t *testing.T) {
	b := entity(eventKey,
		propFixture{name: "location.city", value: strVal("Houston")},
		propFixture{name: "location.country", value: strVal("USA")},
		propFixture{name: "location.zip", value: strVal("77010")},
	)
	e, err := Decode(b, eventSchema)
	require.NoError(t, err)
	assert.Equal(t, PropertyMap{"city": "Houston", "country": "USA"}, e.Props["location"])
}

func TestDecodeRepeatedDottedIsUnsupported(t *testing.T) {
	b := entity(eventKey, propFixture{name: "location.city", multiple: true, value: strVal("Houston")})
	_, err := Decode(b, eventSchema)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDecodeEmbeddedEntityIsUnsupported(t *testing.T) {
	b := entity(eventKey, propFixture{name: "details", meaning: meaningEntityProto, value: rawVal([]byte{1})})
	_, err := Decode(b, eventSchema)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDecodeRepeated(t *testing.T) {
	b := entity(eventKey,
		propFixture{name: "webcast", multiple: true, value: strVal("twitch")},
		propFixture{name: "webcast", multiple: true, value: strVal("youtube")},
		propFixture{name: "divisions", multiple: true, value: strVal("2019carv")},
	)
	e, err := Decode(b, eventSchema)
	require.NoError(t, err)
	assert.Equal(t, []any{"twitch", "youtube"}, e.Props["webcast"])
	assert.Equal(t, []any{"2019carv"}, e.Props["divisions"])
}

func TestDecodeTextFallsBackToBytes(t *testing.T) {
	b := entity(eventKey,
		propFixture{name: "summary", meaning: meaningText, value: rawVal([]byte{0xff, 0xfe, 'a'})},
		propFixture{name: "name", meaning: meaningText, value: strVal("Zürich")},
		propFixture{name: "city", uri: "ZLIB", value: strVal("Houston")},
	)
	e, err := Decode(b, eventSchema)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe, 'a'}, e.Props["summary"])
	assert.Equal(t, "Zürich", e.Props["name"])
	assert.Equal(t, "Houston", e.Props["city"])
}

func TestDecodeRepeatedAfterSingleKeepsBoth(t *testing.T) {
	b := entity(eventKey,
		propFixture{name: "webcast", value: strVal("twitch")},
		propFixture{name: "webcast", multiple: true, value: strVal("youtube")},
		propFixture{name: "webcast", multiple: true, value: strVal("livestream")},
	)
	e, err := Decode(b, eventSchema)
	require.NoError(t, err)
	assert.Equal(t, []any{"twitch", "youtube", "livestream"}, e.Props["webcast"])
}

func TestDecodeKeylessWithoutSchema(t *testing.T) {
	e, err := Decode(entity(nil, propFixture{name: "name", value: strVal("x")}), nil)
	require.NoError(t, err)
	assert.Nil(t, e.Key)
	assert.Equal(t, "", e.Kind())
	assert.Equal(t, PropertyMap{"name": "x"}, e.Props)
}

func TestDecodeEmptyList(t *testing.T) {
	b := entity(eventKey, propFixture{name: "webcast", meaning: meaningEmptyList})
	e, err := Decode(b, eventSchema)
	require.NoError(t, err)
	assert.Equal(t, []any{}, e.Props["webcast"])
}

func TestDecodeNilSchemaKeepsEverything(t *testing.T) {
	b := entity(nil,
		propFixture{name: "anything", value: intVal(-3)},
		propFixture{name: "a.b", multiple: true, value: intVal(4)},
	)
	e, err := Decode(b, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), e.Props["anything"])
	assert.Equal(t, []any{int64(4)}, e.Props["a.b"])
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string][]byte{
		"truncated tag":    {0xff},
		"truncated length": bytesField(nil, entityProperty, []byte("abcd"))[:3],
		"stray end group":  protowire.AppendTag(nil, 9, protowire.EndGroupType),
		"nameless property": bytesField(nil, entityProperty,
			bytesField(nil, propValue, intVal(1))),
		"bad zlib": entity(eventKey, propFixture{name: "details", meaning: meaningBlob, uri: "ZLIB", value: rawVal([]byte("nope"))}),
		"empty":    nil,
		"keyless":  entity(nil, propFixture{name: "name", value: strVal("x")}),
	}
	for name, b := range cases {
		_, err := Decode(b, eventSchema)
		var de *DecodeError
		assert.True(t, errors.As(err, &de), "%s: got %v", name, err)
	}
}

func TestEntityRecord(t *testing.T) {
	b := entity(
		keyBytes("app", PathElement{Kind: "Event", Name: "2019cmptx"}),
		propFixture{name: "name", value: strVal("Einstein")},
		propFixture{name: "location.city", value: strVal("Houston")},
	)
	e, err := Decode(b, eventSchema)
	require.NoError(t, err)

	rec := e.Record(eventSchema)
	assert.Equal(t, "2019cmptx", rec.Key)
	assert.Equal(t, "Event", rec.Kind())
	assert.Equal(t, "Einstein", rec.Get("name"))

	loc, ok := rec.Get("location").(*record.Record)
	require.True(t, ok)
	assert.Equal(t, "Location", loc.Kind())
	assert.Equal(t, "Houston", loc.Get("city"))
}

func TestKeyStrings(t *testing.T) {
	k := Key{Path: []PathElement{{Kind: "Event", Name: "2019cmptx"}, {Kind: "Award", ID: 42}}}
	assert.Equal(t, "Award", k.Kind())
	assert.Equal(t, "42", k.ID())
	assert.Equal(t, "Event:2019cmptx/Award:42", k.PathString())
	assert.Equal(t, "", Key{}.ID())
}
