package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/Sternrassler/space-sync/pkg/schema"
)

func TestMemory_CreateAndAppend(t *testing.T) {
	m := NewMemory()

	if m.HasGroup("Point", 0) {
		t.Fatal("HasGroup() = true before CreateGroup")
	}
	h, err := m.CreateGroup("Point", 0)
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if !m.HasGroup("Point", 0) {
		t.Error("HasGroup() = false after CreateGroup")
	}
	if _, err := m.CreateGroup("Point", 0); !errors.Is(err, ErrGroupExists) {
		t.Errorf("second CreateGroup() error = %v, want ErrGroupExists", err)
	}

	fields := []schema.Field{{Name: "xyz_id", Type: schema.FieldString}, {Name: "n", Type: schema.FieldInt}}
	rows := []Row{
		{Values: map[string]any{"xyz_id": "a", "n": int64(1)}},
		{Values: map[string]any{"xyz_id": "b", "n": int64(2)}},
	}
	if err := m.Append(h, rows, fields); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := m.Append(h, rows[:1], fields[:1]); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got := m.Rows(h)
	if len(got) != 3 {
		t.Fatalf("Rows() len = %d, want 3", len(got))
	}
	for i, r := range got {
		if r.ID != int64(i+1) {
			t.Errorf("row %d ID = %d, want %d", i, r.ID, i+1)
		}
	}
	if n := len(m.Fields(h)); n != 2 {
		t.Errorf("Fields() len = %d, want 2 (fields never shrink)", n)
	}
	if m.Count() != 3 {
		t.Errorf("Count() = %d, want 3", m.Count())
	}
}

func TestMemory_AppendUnknownGroup(t *testing.T) {
	m := NewMemory()
	err := m.Append(Handle{"Polygon", 3}, []Row{{}}, nil)
	if !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("Append() error = %v, want ErrUnknownGroup", err)
	}
}

func TestMemory_GroupsSorted(t *testing.T) {
	m := NewMemory()
	for _, h := range []Handle{{"Point", 1}, {"LineString", 0}, {"Point", 0}} {
		if _, err := m.CreateGroup(h.GeometryType, h.Ordinal); err != nil {
			t.Fatal(err)
		}
	}

	want := []Handle{{"LineString", 0}, {"Point", 0}, {"Point", 1}}
	got := m.Groups()
	if len(got) != len(want) {
		t.Fatalf("Groups() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Groups()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if s := want[2].String(); s != "Point_1" {
		t.Errorf("String() = %q, want Point_1", s)
	}
}

func TestMemory_ConcurrentAppend(t *testing.T) {
	m := NewMemory()
	h, _ := m.CreateGroup("Point", 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = m.Append(h, []Row{{}}, nil)
			}
		}()
	}
	wg.Wait()

	rows := m.Rows(h)
	if len(rows) != 400 {
		t.Fatalf("rows = %d, want 400", len(rows))
	}
	seen := make(map[int64]bool, len(rows))
	for _, r := range rows {
		if seen[r.ID] {
			t.Fatalf("duplicate row id %d", r.ID)
		}
		seen[r.ID] = true
	}
}
