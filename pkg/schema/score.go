package schema

import (
	"math"
	"strings"
)

// Reserved keys never take part in similarity scoring.
const (
	// KeyRowID is the local row id assigned by the store.
	KeyRowID = "fid"

	// KeyRemoteID holds the remote feature id.
	KeyRemoteID = "xyz_id"

	// KeyNamespace is the vendor metadata namespace.
	KeyNamespace = "@ns:com:here:xyz"
)

func reserved(name string) bool {
	return name == KeyRowID || name == KeyRemoteID || name == KeyNamespace
}

func filterNames(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if !reserved(n) {
			set[n] = struct{}{}
		}
	}
	return set
}

// Score measures the field-name overlap between a group's names (ref) and a
// feature's property names (candidate), in [0, 100].
//
// Any two names across both sides that differ only by letter case score 0:
// merging Name into name would lose data.
func Score(ref, candidate []string) int {
	refSet := filterNames(ref)
	candSet := filterNames(candidate)

	union := make(map[string]struct{}, len(refSet)+len(candSet))
	for n := range refSet {
		union[n] = struct{}{}
	}
	x := 0
	for n := range candSet {
		if _, ok := refSet[n]; ok {
			x++
		}
		union[n] = struct{}{}
	}

	lower := make(map[string]struct{}, len(union))
	for n := range union {
		lower[strings.ToLower(n)] = struct{}{}
	}
	if len(lower) < len(union) {
		return 0
	}

	n1, n2 := len(refSet), len(candSet)
	if n1 == 0 && n2 == 0 {
		return 100
	}

	best := 0.0
	if n1 > 0 {
		best = math.Max(best, 100*float64(x)/float64(n1))
	}
	if n2 > 0 {
		best = math.Max(best, 100*float64(x)/float64(n2))
	}
	return int(math.Round(best))
}
