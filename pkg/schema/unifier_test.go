package schema

import (
	"encoding/json"
	"testing"
)

func feature(t *testing.T, doc string) Feature {
	t.Helper()
	f, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode(%s): %v", doc, err)
	}
	return f
}

func TestDecode(t *testing.T) {
	f := feature(t, `{"id":"abc","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"n":3,"r":1.5}}`)

	if f.ID != "abc" {
		t.Errorf("ID = %q, want abc", f.ID)
	}
	if f.GeometryType != "Point" {
		t.Errorf("GeometryType = %q, want Point", f.GeometryType)
	}
	if _, ok := f.Properties["n"].(json.Number); !ok {
		t.Errorf("Properties[n] = %T, want json.Number", f.Properties["n"])
	}

	numeric := feature(t, `{"id":42}`)
	if numeric.ID != "42" {
		t.Errorf("numeric ID = %q, want 42", numeric.ID)
	}
	if numeric.GeometryType != "" || numeric.Properties == nil {
		t.Errorf("bare feature = %+v, want empty geometry and non-nil properties", numeric)
	}

	if _, err := Decode([]byte(`{"id":`)); err == nil {
		t.Error("expected error for truncated document")
	}
}

func TestUnifier_Threshold(t *testing.T) {
	docs := []string{
		`{"geometry":{"type":"Point"},"properties":{"a":1,"b":2}}`,
		`{"geometry":{"type":"Point"},"properties":{"c":1,"d":2}}`,
		`{"geometry":{"type":"Point"},"properties":{"a":1}}`,
		`{"geometry":{"type":"LineString"},"properties":{"a":1}}`,
	}

	tests := []struct {
		name      string
		threshold int
		ordinals  []int
		points    int
	}{
		{name: "always merge", threshold: 0, ordinals: []int{0, 0, 0, 0}, points: 1},
		{name: "default", threshold: DefaultThreshold, ordinals: []int{0, 1, 0, 0}, points: 2},
		{name: "never merge", threshold: 100, ordinals: []int{0, 1, 0, 0}, points: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewUnifier(tt.threshold)
			for i, doc := range docs {
				a := u.Assign(feature(t, doc))
				if a.Ordinal != tt.ordinals[i] {
					t.Errorf("feature %d ordinal = %d, want %d", i, a.Ordinal, tt.ordinals[i])
				}
			}
			if got := len(u.Groups("Point")); got != tt.points {
				t.Errorf("Point groups = %d, want %d", got, tt.points)
			}
			if got := len(u.Groups("LineString")); got != 1 {
				t.Errorf("LineString groups = %d, want 1", got)
			}
		})
	}
}

func TestUnifier_CaseCollisionCreatesGroup(t *testing.T) {
	u := NewUnifier(50)
	first := u.Assign(feature(t, `{"properties":{"name":"x"}}`))
	second := u.Assign(feature(t, `{"properties":{"Name":"y"}}`))

	if first.Ordinal == second.Ordinal {
		t.Errorf("Name and name share group %d", first.Ordinal)
	}
	if !second.Created {
		t.Error("second assignment should create a group")
	}
}

func TestUnifier_FieldsAppendOnly(t *testing.T) {
	u := NewUnifier(0)
	u.Assign(feature(t, `{"properties":{"b":1,"a":"x"}}`))
	a := u.Assign(feature(t, `{"properties":{"c":true}}`))

	want := []string{KeyRemoteID, "a", "b", "c"}
	if len(a.Fields) != len(want) {
		t.Fatalf("Fields = %v, want names %v", a.Fields, want)
	}
	for i, name := range want {
		if a.Fields[i].Name != name {
			t.Errorf("Fields[%d] = %q, want %q", i, a.Fields[i].Name, name)
		}
	}
}

func TestUnifier_TypeWidening(t *testing.T) {
	u := NewUnifier(0)

	first := u.Assign(feature(t, `{"properties":{"n":1,"s":"x","z":null}}`))
	if v := first.Values["n"]; v != int64(1) {
		t.Errorf("n = %#v, want int64(1)", v)
	}

	second := u.Assign(feature(t, `{"properties":{"n":2.5,"s":7,"z":true}}`))
	types := map[string]FieldType{}
	for _, f := range second.Fields {
		types[f.Name] = f.Type
	}

	if types["n"] != FieldReal {
		t.Errorf("n type = %v, want real", types["n"])
	}
	if types["s"] != FieldString {
		t.Errorf("s type = %v, want string", types["s"])
	}
	if v := second.Values["s"]; v != "7" {
		t.Errorf("s = %#v, want text \"7\"", v)
	}
	if types["z"] != FieldBool {
		t.Errorf("z type = %v, want bool", types["z"])
	}

	third := u.Assign(feature(t, `{"properties":{"n":3,"obj":{"k":[1,2]}}}`))
	if v := third.Values["n"]; v != float64(3) {
		t.Errorf("n = %#v, want float64(3)", v)
	}
	if v := third.Values["obj"]; v != `{"k":[1,2]}` {
		t.Errorf("obj = %#v, want JSON text", v)
	}
}

func TestUnifier_ResetPrefersUnusedGroup(t *testing.T) {
	u := NewUnifier(100)
	u.Assign(feature(t, `{"properties":{"a":1}}`))
	u.Assign(feature(t, `{"properties":{"b":1}}`))
	if got := len(u.Groups("")); got != 2 {
		t.Fatalf("groups = %d, want 2", got)
	}

	u.Reset()

	a := u.Assign(feature(t, `{"properties":{"zzz":1}}`))
	if a.Created || a.Ordinal != 0 {
		t.Errorf("after reset got ordinal %d created=%v, want unused group 0", a.Ordinal, a.Created)
	}

	b := u.Assign(feature(t, `{"properties":{"yyy":1}}`))
	if b.Created || b.Ordinal != 1 {
		t.Errorf("second after reset got ordinal %d created=%v, want unused group 1", b.Ordinal, b.Created)
	}

	c := u.Assign(feature(t, `{"properties":{"xxx":1}}`))
	if !c.Created || c.Ordinal != 2 {
		t.Errorf("third after reset got ordinal %d created=%v, want new group 2", c.Ordinal, c.Created)
	}
}

func TestUnifier_Deterministic(t *testing.T) {
	docs := []string{
		`{"properties":{"a":1,"b":1}}`,
		`{"properties":{"a":1,"c":1}}`,
		`{"properties":{"x":1}}`,
		`{"properties":{"a":1,"b":1,"c":1}}`,
	}

	run := func() []int {
		u := NewUnifier(60)
		out := make([]int, len(docs))
		for i, d := range docs {
			out[i] = u.Assign(feature(t, d)).Ordinal
		}
		return out
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("run mismatch at %d: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestNewUnifier_ClampsThreshold(t *testing.T) {
	if got := NewUnifier(-5).Threshold(); got != 0 {
		t.Errorf("Threshold = %d, want 0", got)
	}
	if got := NewUnifier(500).Threshold(); got != 100 {
		t.Errorf("Threshold = %d, want 100", got)
	}
}
