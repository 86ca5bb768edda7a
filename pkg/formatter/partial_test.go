package formatter

import (
	"errors"
	"testing"

	"github.com/vango-dev/ion/pkg/protocol"
)

type profile struct {
	A    int32
	B    string
	C    bool
	Tags []string
}

var profileSchema = NewSchema(
	Field[profile]{
		Name: "a", TypeName: Int32,
		Get:   func(p *profile) any { return p.A },
		Set:   func(p *profile, v any) { p.A = v.(int32) },
		Clear: func(p *profile) { p.A = 0 },
	},
	Field[profile]{
		Name: "b", TypeName: String,
		Get:   func(p *profile) any { return p.B },
		Set:   func(p *profile, v any) { p.B = v.(string) },
		Clear: func(p *profile) { p.B = "" },
	},
	Field[profile]{
		Name: "c", TypeName: Bool,
		Get:   func(p *profile) any { return p.C },
		Set:   func(p *profile, v any) { p.C = v.(bool) },
		Clear: func(p *profile) { p.C = false },
	},
	Field[profile]{
		Name: "tags", TypeName: "Array<string>",
		Get: func(p *profile) any { return p.Tags },
		Set: func(p *profile, v any) { p.Tags = v.([]string) },
	},
)

func profileRegistry() *Registry {
	return NewBuilder().
		Register("Array<string>", ArrayOf[string](String)).
		Register("Partial<profile>", PartialOf(profileSchema)).
		Register("profile", RecordOf(profileSchema)).
		Build()
}

func TestPartialThreeStates(t *testing.T) {
	reg := profileRegistry()

	p := NewPartial(profileSchema)
	if err := p.Set("a", int32(4)); err != nil {
		t.Fatal(err)
	}
	if err := p.Remove("b"); err != nil {
		t.Fatal(err)
	}

	w := protocol.NewWriter()
	if err := WritePartial(reg, w, p); err != nil {
		t.Fatal(err)
	}

	r := protocol.NewReader(w.Bytes())
	if n, err := r.StartMap(); err != nil || n != 2 {
		t.Fatalf("encoded map has %d entries (%v), want 2", n, err)
	}

	got, err := ReadPartial(reg, profileSchema, protocol.NewReader(w.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if v, s := got.Value("a"); s != Modified || v != int32(4) {
		t.Errorf("a = %v (%s), want Modified(4)", v, s)
	}
	if s := got.State("b"); s != Removed {
		t.Errorf("b = %s, want Removed", s)
	}
	if s := got.State("c"); s != Unset {
		t.Errorf("c = %s, want Unset", s)
	}

	var visited []string
	got.Visit(func(f Field[profile], _ FieldState, _ any) {
		visited = append(visited, f.Name)
	})
	if len(visited) != 2 || visited[0] != "a" || visited[1] != "b" {
		t.Errorf("visited %v, want [a b]", visited)
	}
}

func TestPartialApply(t *testing.T) {
	rec := profile{A: 1, B: "keep me?", C: true}
	p := NewPartial(profileSchema)
	p.Set("a", int32(9))
	p.Remove("b")
	p.Apply(&rec)
	if rec.A != 9 || rec.B != "" || !rec.C {
		t.Errorf("applied record = %+v", rec)
	}
}

func TestPartialSkipsUnknownKeys(t *testing.T) {
	w := protocol.NewWriter()
	w.StartMap(3)
	w.WriteText("future")
	w.StartArray(2)
	w.WriteText("x")
	w.StartMap(0)
	w.EndMap()
	w.EndArray()
	w.WriteText("c")
	w.WriteBool(true)
	w.WriteText("tags")
	w.StartArray(1)
	w.WriteText("t1")
	w.EndArray()
	w.EndMap()

	got, err := ReadPartial(profileRegistry(), profileSchema, protocol.NewReader(w.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 {
		t.Errorf("Len() = %d, want 2", got.Len())
	}
	if v, s := got.Value("c"); s != Modified || v != true {
		t.Errorf("c = %v (%s)", v, s)
	}
	if v, _ := got.Value("tags"); len(v.([]string)) != 1 {
		t.Errorf("tags = %v", v)
	}
}

func TestPartialUnknownField(t *testing.T) {
	p := NewPartial(profileSchema)
	if err := p.Set("zzz", 1); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Set = %v, want ErrUnknownField", err)
	}
	if err := p.Remove("zzz"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Remove = %v, want ErrUnknownField", err)
	}
}

func TestPartialCaptureAndFormatter(t *testing.T) {
	reg := profileRegistry()
	rec := profile{A: 7, B: "seven", Tags: []string{}}

	p := NewPartial(profileSchema)
	if err := p.Capture(&rec, "b", "tags"); err != nil {
		t.Fatal(err)
	}
	got := roundTrip(t, reg, "Partial<profile>", p)
	if got.State("a") != Unset || got.State("b") != Modified || got.State("tags") != Modified {
		t.Errorf("states a=%s b=%s tags=%s", got.State("a"), got.State("b"), got.State("tags"))
	}
	if err := got.Unset("b"); err != nil || got.State("b") != Unset {
		t.Errorf("Unset(b) = %v, state %s", err, got.State("b"))
	}
}

func TestRecordForwardCompatible(t *testing.T) {
	reg := profileRegistry()
	rec := profile{A: -2, B: "bee", C: true, Tags: []string{"x", "y"}}
	got := roundTrip(t, reg, "profile", rec)
	if got.A != rec.A || got.B != rec.B || got.C != rec.C || len(got.Tags) != 2 {
		t.Errorf("round trip = %+v", got)
	}

	// A newer writer appended a fifth field.
	w := protocol.NewWriter()
	w.StartArray(5)
	w.WriteInt(1)
	w.WriteText("b")
	w.WriteBool(false)
	w.StartArray(0)
	w.EndArray()
	w.WriteText("added later")
	w.EndArray()
	w.WriteInt(99)

	r := protocol.NewReader(w.Bytes())
	newer, err := ReadRecord(reg, profileSchema, r)
	if err != nil {
		t.Fatal(err)
	}
	if newer.A != 1 || newer.B != "b" {
		t.Errorf("record = %+v", newer)
	}
	if v, err := r.ReadInt64(); err != nil || v != 99 {
		t.Errorf("next item = %d, %v", v, err)
	}

	// An older writer knew only two fields.
	w = protocol.NewWriter()
	w.StartArray(2)
	w.WriteInt(5)
	w.WriteText("old")
	w.EndArray()
	older, err := ReadRecord(reg, profileSchema, protocol.NewReader(w.Bytes()))
	if err != nil || older.A != 5 || older.B != "old" || older.C {
		t.Errorf("older record = %+v, %v", older, err)
	}
}

func TestDuplicateSchemaFieldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewSchema did not panic on a duplicate field")
		}
	}()
	NewSchema(Field[profile]{Name: "a"}, Field[profile]{Name: "a"})
}
