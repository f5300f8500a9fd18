// Package store holds unified feature groups in memory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Sternrassler/space-sync/pkg/schema"
)

var (
	// ErrGroupExists is returned when creating a group twice.
	ErrGroupExists = errors.New("group already exists")

	// ErrUnknownGroup is returned when appending to a group never created.
	ErrUnknownGroup = errors.New("unknown group")
)

// Handle identifies a group.
type Handle struct {
	GeometryType string
	Ordinal      int
}

func (h Handle) String() string {
	return fmt.Sprintf("%s_%d", h.GeometryType, h.Ordinal)
}

// Row is one stored feature.
type Row struct {
	ID     int64
	Values map[string]any
	Raw    json.RawMessage
}

type group struct {
	fields []schema.Field
	rows   []Row
}

// Memory is a goroutine-safe in-memory group store. Row ids are assigned
// per group starting at 1.
type Memory struct {
	mu     sync.RWMutex
	groups map[Handle]*group
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{groups: make(map[Handle]*group)}
}

// HasGroup reports whether the group exists.
func (m *Memory) HasGroup(geometryType string, ordinal int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.groups[Handle{geometryType, ordinal}]
	return ok
}

// CreateGroup creates an empty group.
func (m *Memory) CreateGroup(geometryType string, ordinal int) (Handle, error) {
	h := Handle{geometryType, ordinal}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[h]; ok {
		return h, fmt.Errorf("%w: %s", ErrGroupExists, h)
	}
	m.groups[h] = &group{}
	return h, nil
}

// Append adds rows to a group. fields is the group's current field list;
// it only ever grows, so a shorter list than the stored one is ignored.
func (m *Memory) Append(h Handle, rows []Row, fields []schema.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGroup, h)
	}
	if len(fields) > len(g.fields) {
		g.fields = append([]schema.Field(nil), fields...)
	}
	next := int64(len(g.rows)) + 1
	for _, r := range rows {
		r.ID = next
		next++
		g.rows = append(g.rows, r)
	}
	return nil
}

// Groups returns every group handle sorted by geometry type and ordinal.
func (m *Memory) Groups() []Handle {
	m.mu.RLock()
	out := make([]Handle, 0, len(m.groups))
	for h := range m.groups {
		out = append(out, h)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].GeometryType != out[j].GeometryType {
			return out[i].GeometryType < out[j].GeometryType
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out
}

// Rows returns a copy of the group's rows in insertion order.
func (m *Memory) Rows(h Handle) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[h]
	if !ok {
		return nil
	}
	return append([]Row(nil), g.rows...)
}

// Fields returns the group's field list.
func (m *Memory) Fields(h Handle) []schema.Field {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[h]
	if !ok {
		return nil
	}
	return append([]schema.Field(nil), g.fields...)
}

// Count returns the number of rows across all groups.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, g := range m.groups {
		n += len(g.rows)
	}
	return n
}
