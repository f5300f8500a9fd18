package cache

import (
	"net/url"
	"strings"
)

// KeyPrefix is the namespace of every cache key.
const KeyPrefix = "spacesync"

// Key identifies a cached response.
type Key struct {
	// Space is the remote space id.
	Space string

	// Endpoint is the path below the space, e.g. "iterate" or "tile/quadkey/1_2_3".
	Endpoint string

	// Query holds the request parameters.
	Query url.Values
}

// String generates a deterministic key.
// Format: spacesync:{space}:{endpoint}:{sorted query}
//
// Example:
//
//	spacesync:xyz123:iterate:handle=0&limit=100
func (k Key) String() string {
	parts := []string{KeyPrefix, k.Space}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Encode sorts by parameter name.
	if len(k.Query) > 0 {
		parts = append(parts, k.Query.Encode())
	}

	return strings.Join(parts, ":")
}
