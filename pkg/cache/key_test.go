package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "space only",
			key:  Key{Space: "abc"},
			want: "spacesync:abc",
		},
		{
			name: "endpoint is trimmed",
			key:  Key{Space: "abc", Endpoint: "/iterate/"},
			want: "spacesync:abc:iterate",
		},
		{
			name: "query sorted by name",
			key: Key{
				Space:    "abc",
				Endpoint: "iterate",
				Query:    url.Values{"limit": {"100"}, "handle": {"0"}},
			},
			want: "spacesync:abc:iterate:handle=0&limit=100",
		},
		{
			name: "tile endpoint with tags",
			key: Key{
				Space:    "abc",
				Endpoint: "tile/quadkey/2_1_3",
				Query:    url.Values{"tags": {"roads,rail"}},
			},
			want: "spacesync:abc:tile/quadkey/2_1_3:tags=roads%2Crail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Determinism(t *testing.T) {
	a := Key{Space: "s", Endpoint: "bbox", Query: url.Values{"west": {"1"}, "east": {"2"}, "limit": {"10"}}}
	b := Key{Space: "s", Endpoint: "bbox", Query: url.Values{"limit": {"10"}, "east": {"2"}, "west": {"1"}}}

	for i := 0; i < 10; i++ {
		if a.String() != b.String() {
			t.Fatalf("keys differ: %q vs %q", a.String(), b.String())
		}
	}

	other := Key{Space: "t", Endpoint: "bbox", Query: a.Query}
	if a.String() == other.String() {
		t.Error("keys for different spaces should differ")
	}
}
