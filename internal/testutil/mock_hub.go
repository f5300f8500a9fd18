// Package testutil provides a mock hub server for tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Page records a served iterate request.
type Page struct {
	Handle int64
	Limit  int
	Count  int
}

// FeatureFunc builds the n-th feature of the collection.
type FeatureFunc func(n int64) json.RawMessage

// MockHub is a configurable hub server. The iterate endpoint serves a
// collection of Total features (negative means unbounded) generated by a
// FeatureFunc.
type MockHub struct {
	server *httptest.Server

	mu           sync.Mutex
	total        int64
	feature      FeatureFunc
	failures     map[string][]int
	maxLimit     int
	tiles        map[string]int
	bboxFeatures int
	token        string
	gzip         bool
	etag         bool
	handlers     map[string]http.HandlerFunc

	pages       []Page
	requests    int
	conditional int
	uploads     [][]json.RawMessage
	deletes     [][]string
}

// NewMockHub starts a hub serving total features.
func NewMockHub(total int64) *MockHub {
	m := &MockHub{
		total:    total,
		feature:  PointFeature,
		failures: make(map[string][]int),
		tiles:    make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the server URL.
func (m *MockHub) URL() string { return m.server.URL }

// Close shuts down the server.
func (m *MockHub) Close() { m.server.Close() }

// PointFeature is the default FeatureFunc.
func PointFeature(n int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"type":"Feature","id":"f%d","geometry":{"type":"Point","coordinates":[%d,0]},"properties":{"n":%d,"name":"feature %d"}}`,
		n, n%360-180, n, n))
}

// SetFeatureFunc replaces the feature generator.
func (m *MockHub) SetFeatureFunc(fn FeatureFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feature = fn
}

// FailPage makes the iterate request {handle, limit} fail with the given
// statuses, one per attempt, before succeeding.
func (m *MockHub) FailPage(handle int64, limit int, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pageKey(handle, limit)
	m.failures[key] = append(m.failures[key], statuses...)
}

// SetMaxLimit makes every iterate request above limit fail with 500.
func (m *MockHub) SetMaxLimit(limit int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxLimit = limit
}

// SetTile serves n features for a tile id. Unknown tiles answer 404.
func (m *MockHub) SetTile(id string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles[id] = n
}

// SetBBoxFeatures sets the number of features returned per bbox request.
func (m *MockHub) SetBBoxFeatures(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bboxFeatures = n
}

// RequireToken rejects requests without "Bearer token".
func (m *MockHub) RequireToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// EnableGzip compresses responses when the client accepts gzip.
func (m *MockHub) EnableGzip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gzip = true
}

// EnableETag adds ETags to iterate responses and answers matching
// If-None-Match with 304.
func (m *MockHub) EnableETag() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etag = true
}

// SetHandler overrides the handler of an endpoint below the space, e.g.
// "iterate".
func (m *MockHub) SetHandler(endpoint string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[endpoint] = handler
}

// Pages returns the successfully served iterate pages in order.
func (m *MockHub) Pages() []Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Page(nil), m.pages...)
}

// Requests returns the number of requests received.
func (m *MockHub) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// ConditionalRequests returns the number of requests carrying validators.
func (m *MockHub) ConditionalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditional
}

// Uploads returns the feature batches received by PUT.
func (m *MockHub) Uploads() [][]json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]json.RawMessage(nil), m.uploads...)
}

// Deletes returns the id batches received by DELETE.
func (m *MockHub) Deletes() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.deletes...)
}

func pageKey(handle int64, limit int) string {
	return fmt.Sprintf("%d/%d", handle, limit)
}

func (m *MockHub) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests++
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.conditional++
	}
	token := m.token
	m.mu.Unlock()

	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, `{"error":"token expired"}`, http.StatusUnauthorized)
		return
	}

	w.Header().Set("X-RateLimit-Remaining", "1000")
	w.Header().Set("X-RateLimit-Reset", "60")

	rest, ok := strings.CutPrefix(r.URL.Path, "/hub/spaces/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, endpoint, _ := strings.Cut(rest, "/")

	m.mu.Lock()
	handler := m.handlers[endpoint]
	m.mu.Unlock()
	if handler != nil {
		handler(w, r)
		return
	}

	switch {
	case endpoint == "iterate" && r.Method == http.MethodGet:
		m.iterate(w, r)
	case strings.HasPrefix(endpoint, "tile/") && r.Method == http.MethodGet:
		m.tile(w, r, endpoint)
	case endpoint == "bbox" && r.Method == http.MethodGet:
		m.bbox(w, r)
	case endpoint == "features" && r.Method == http.MethodPut:
		m.upload(w, r)
	case endpoint == "features" && r.Method == http.MethodDelete:
		m.delete(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockHub) iterate(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		http.Error(w, `{"error":"bad limit"}`, http.StatusBadRequest)
		return
	}
	handle, _ := strconv.ParseInt(r.URL.Query().Get("handle"), 10, 64)

	m.mu.Lock()
	key := pageKey(handle, limit)
	if pending := m.failures[key]; len(pending) > 0 {
		status := pending[0]
		m.failures[key] = pending[1:]
		m.mu.Unlock()
		http.Error(w, `{"error":"response too large"}`, status)
		return
	}
	if m.maxLimit > 0 && limit > m.maxLimit {
		m.mu.Unlock()
		http.Error(w, `{"error":"response too large"}`, http.StatusInternalServerError)
		return
	}

	count := int64(limit)
	if m.total >= 0 {
		count = max(0, min(count, m.total-handle))
	}
	features := make([]json.RawMessage, 0, count)
	for n := handle; n < handle+count; n++ {
		features = append(features, m.feature(n))
	}
	more := m.total < 0 || handle+count < m.total
	m.pages = append(m.pages, Page{Handle: handle, Limit: limit, Count: int(count)})
	useETag := m.etag
	m.mu.Unlock()

	body := map[string]any{"type": "FeatureCollection", "features": features}
	if more {
		body["handle"] = strconv.FormatInt(handle+count, 10)
	}

	if useETag {
		etag := `"` + key + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	m.writeJSON(w, r, body)
}

func (m *MockHub) tile(w http.ResponseWriter, r *http.Request, endpoint string) {
	id := endpoint[strings.LastIndex(endpoint, "/")+1:]

	m.mu.Lock()
	n, ok := m.tiles[id]
	fn := m.feature
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	features := make([]json.RawMessage, 0, n)
	for i := 0; i < n; i++ {
		features = append(features, fn(int64(i)))
	}
	m.writeJSON(w, r, map[string]any{"type": "FeatureCollection", "features": features})
}

func (m *MockHub) bbox(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	n := m.bboxFeatures
	m.mu.Unlock()

	if n == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	q := r.URL.Query()
	features := make([]json.RawMessage, 0, n)
	for i := 0; i < n; i++ {
		features = append(features, json.RawMessage(fmt.Sprintf(
			`{"type":"Feature","id":"b%s_%s_%d","geometry":{"type":"Point","coordinates":[%s,%s]},"properties":{"i":%d}}`,
			q.Get("west"), q.Get("south"), i, q.Get("west"), q.Get("south"), i)))
	}
	m.writeJSON(w, r, map[string]any{"type": "FeatureCollection", "features": features})
}

func (m *MockHub) upload(w http.ResponseWriter, r *http.Request) {
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(r.Body).Decode(&fc); err != nil {
		http.Error(w, `{"error":"bad body"}`, http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.uploads = append(m.uploads, fc.Features)
	m.mu.Unlock()
	m.writeJSON(w, r, map[string]any{"type": "FeatureCollection", "features": fc.Features})
}

func (m *MockHub) delete(w http.ResponseWriter, r *http.Request) {
	ids := r.URL.Query()["id"]
	m.mu.Lock()
	m.deletes = append(m.deletes, ids)
	m.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (m *MockHub) writeJSON(w http.ResponseWriter, r *http.Request, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	compress := m.gzip
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/geo+json")
	if compress && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write(data)
		_ = zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		data = buf.Bytes()
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, bytes.NewReader(data))
}
