package schema

import "testing"

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		ref       []string
		candidate []string
		want      int
	}{
		{name: "half overlap", ref: []string{"fid", "a", "c"}, candidate: []string{"a", "b"}, want: 50},
		{name: "both empty", ref: []string{}, candidate: []string{}, want: 100},
		{name: "empty after reserved filter", ref: []string{"fid"}, candidate: []string{}, want: 100},
		{name: "case collision", ref: []string{"fid", "a"}, candidate: []string{"A"}, want: 0},
		{name: "subset", ref: []string{"a", "b", "c", "d"}, candidate: []string{"a", "b"}, want: 100},
		{name: "disjoint", ref: []string{"a"}, candidate: []string{"b"}, want: 0},
		{name: "ref empty candidate not", ref: []string{"xyz_id"}, candidate: []string{"a"}, want: 0},
		{name: "candidate empty ref not", ref: []string{"a"}, candidate: nil, want: 0},
		{name: "namespace ignored", ref: []string{"@ns:com:here:xyz", "a"}, candidate: []string{"a"}, want: 100},
		{name: "rounding", ref: []string{"a", "b", "c"}, candidate: []string{"a", "x", "y"}, want: 33},
		{name: "case collision within ref", ref: []string{"Name", "name"}, candidate: []string{"name"}, want: 0},
		{name: "case collision within candidate", ref: []string{"a"}, candidate: []string{"a", "Name", "name"}, want: 0},
		{name: "reserved key filtered before case check", ref: []string{"fid", "a"}, candidate: []string{"FID", "a"}, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.ref, tt.candidate); got != tt.want {
				t.Errorf("Score(%v, %v) = %d, want %d", tt.ref, tt.candidate, got, tt.want)
			}
		})
	}
}
