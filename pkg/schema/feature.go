// Package schema groups schema-less JSON features into a small number of
// typed field groups so each group can be stored in one table.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Feature is a decoded FeatureJSON document.
type Feature struct {
	ID           string
	GeometryType string
	Properties   map[string]any
	Raw          json.RawMessage
}

type rawFeature struct {
	ID       json.RawMessage `json:"id"`
	Geometry *struct {
		Type string `json:"type"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Decode parses one feature. Numbers are kept as json.Number so integer and
// real properties stay distinguishable.
func Decode(raw []byte) (Feature, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var rf rawFeature
	if err := dec.Decode(&rf); err != nil {
		return Feature{}, fmt.Errorf("decode feature: %w", err)
	}

	f := Feature{
		ID:         decodeID(rf.ID),
		Properties: rf.Properties,
		Raw:        append(json.RawMessage(nil), raw...),
	}
	if rf.Geometry != nil {
		f.GeometryType = rf.Geometry.Type
	}
	if f.Properties == nil {
		f.Properties = map[string]any{}
	}
	return f, nil
}

// DecodeAll parses a page of features, failing on the first bad document.
func DecodeAll(raws []json.RawMessage) ([]Feature, error) {
	out := make([]Feature, 0, len(raws))
	for i, raw := range raws {
		f, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
