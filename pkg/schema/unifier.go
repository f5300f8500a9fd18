package schema

import (
	"sort"
	"sync"
)

// DefaultThreshold is the similarity a feature needs to join an existing group.
const DefaultThreshold = 80

// Group is a set of features sharing one append-only field list.
type Group struct {
	GeometryType string
	Ordinal      int

	fields []Field
	index  map[string]int
	count  int
}

func newGroup(geometryType string, ordinal int) *Group {
	g := &Group{
		GeometryType: geometryType,
		Ordinal:      ordinal,
		index:        make(map[string]int),
	}
	g.addField(Field{Name: KeyRemoteID, Type: FieldString})
	return g
}

// Fields returns a copy of the group's fields in insertion order.
func (g *Group) Fields() []Field {
	out := make([]Field, len(g.fields))
	copy(out, g.fields)
	return out
}

// Count returns the number of features assigned since the last reset.
func (g *Group) Count() int { return g.count }

func (g *Group) names() []string {
	out := make([]string, len(g.fields))
	for i, f := range g.fields {
		out[i] = f.Name
	}
	return out
}

func (g *Group) addField(f Field) {
	g.index[f.Name] = len(g.fields)
	g.fields = append(g.fields, f)
}

// absorb records a value for a field and returns the value as it is stored.
func (g *Group) absorb(name string, v any) any {
	t, norm := infer(v)

	i, ok := g.index[name]
	if !ok {
		g.addField(Field{Name: name, Type: t})
		return norm
	}

	f := &g.fields[i]
	switch {
	case t == FieldNull:
		return nil
	case f.Type == FieldNull:
		f.Type = t
		return norm
	case f.Type == t:
		return norm
	case f.Type == FieldReal && t == FieldInt:
		return float64(norm.(int64))
	case f.Type == FieldInt && t == FieldReal:
		f.Type = FieldReal
		return norm
	default:
		return text(norm)
	}
}

// Assignment is the outcome of placing one feature.
type Assignment struct {
	GeometryType string
	Ordinal      int
	Created      bool
	Fields       []Field
	Values       map[string]any
}

// Unifier assigns features to groups per geometry type. It is safe for
// concurrent use.
type Unifier struct {
	mu        sync.Mutex
	threshold int
	groups    map[string][]*Group
}

// NewUnifier creates a unifier. The threshold is clamped to [0, 100]:
// 0 merges everything of one geometry type into one group, 100 merges only
// features whose names are a subset of each other.
func NewUnifier(threshold int) *Unifier {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 100 {
		threshold = 100
	}
	return &Unifier{
		threshold: threshold,
		groups:    make(map[string][]*Group),
	}
}

// Threshold returns the configured similarity threshold.
func (u *Unifier) Threshold() int { return u.threshold }

// Assign places the feature in the best matching group, creating one when
// no used group scores at least the threshold and no unused group exists.
func (u *Unifier) Assign(f Feature) Assignment {
	u.mu.Lock()
	defer u.mu.Unlock()

	names := make([]string, 0, len(f.Properties))
	for k := range f.Properties {
		if k == KeyRowID || k == KeyRemoteID {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	gt := f.GeometryType
	var best, unused *Group
	bestScore := -1
	for _, g := range u.groups[gt] {
		if g.count == 0 {
			if unused == nil {
				unused = g
			}
			continue
		}
		if s := Score(g.names(), names); s > bestScore {
			best, bestScore = g, s
		}
	}

	var chosen *Group
	created := false
	switch {
	case best != nil && bestScore >= u.threshold:
		chosen = best
	case unused != nil:
		chosen = unused
	default:
		chosen = newGroup(gt, len(u.groups[gt]))
		u.groups[gt] = append(u.groups[gt], chosen)
		created = true
	}

	values := make(map[string]any, len(names)+1)
	values[KeyRemoteID] = f.ID
	for _, name := range names {
		values[name] = chosen.absorb(name, f.Properties[name])
	}
	chosen.count++

	return Assignment{
		GeometryType: gt,
		Ordinal:      chosen.Ordinal,
		Created:      created,
		Fields:       chosen.Fields(),
		Values:       values,
	}
}

// Groups returns the groups of one geometry type in ordinal order.
func (u *Unifier) Groups(geometryType string) []*Group {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Group, len(u.groups[geometryType]))
	copy(out, u.groups[geometryType])
	return out
}

// GeometryTypes returns the geometry types seen so far, sorted.
func (u *Unifier) GeometryTypes() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.groups))
	for gt := range u.groups {
		out = append(out, gt)
	}
	sort.Strings(out)
	return out
}

// Reset marks every group unused for a new fetch. Groups and their fields
// are kept.
func (u *Unifier) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, gs := range u.groups {
		for _, g := range gs {
			g.count = 0
		}
	}
}
