package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/space-sync/internal/testutil"
	"github.com/Sternrassler/space-sync/pkg/pagination"
	"github.com/go-spatial/geom"
)

func newTestClient(t *testing.T, hub *testutil.MockHub, opts ...func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig(hub.URL())
	cfg.RatePerSecond = 0
	cfg.Retry = fastPolicy
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func cursor(limit int, handle int64) pagination.Params {
	return pagination.Params{Kind: pagination.KindCursor, Limit: limit, Handle: handle}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", DefaultConfig("http://hub.test"), false},
		{"missing scheme", DefaultConfig("hub.test"), true},
		{"empty url", DefaultConfig(""), true},
		{"negative reauth", func() Config {
			c := DefaultConfig("http://hub.test")
			c.MaxReauth = -1
			return c
		}(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.Cache() != nil {
				t.Error("Cache() should be nil without redis")
			}
		})
	}
}

func TestFetch_Cursor(t *testing.T) {
	hub := testutil.NewMockHub(250)
	defer hub.Close()
	c := newTestClient(t, hub)
	ctx := context.Background()

	resp, err := c.Fetch(ctx, "space", cursor(100, 0))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Features) != 100 {
		t.Errorf("features = %d, want 100", len(resp.Features))
	}
	if resp.Handle == nil || *resp.Handle != 100 {
		t.Errorf("Handle = %v, want 100", resp.Handle)
	}

	resp, err = c.Fetch(ctx, "space", cursor(100, 200))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Features) != 50 {
		t.Errorf("features = %d, want 50", len(resp.Features))
	}
	if resp.Handle != nil {
		t.Errorf("Handle = %d, want nil on last page", *resp.Handle)
	}

	state, err := c.quota.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 1000 {
		t.Errorf("quota Remaining = %d, want 1000 from hub headers", state.Remaining)
	}
}

func TestFetch_Gzip(t *testing.T) {
	hub := testutil.NewMockHub(10)
	defer hub.Close()
	hub.EnableGzip()
	c := newTestClient(t, hub)

	resp, err := c.Fetch(context.Background(), "space", cursor(5, 0))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Features) != 5 {
		t.Errorf("features = %d, want 5", len(resp.Features))
	}
	if string(resp.Features[0]) != string(testutil.PointFeature(0)) {
		t.Errorf("feature[0] = %s, want %s", resp.Features[0], testutil.PointFeature(0))
	}
}

func TestFetch_Tile(t *testing.T) {
	hub := testutil.NewMockHub(0)
	defer hub.Close()
	hub.SetTile("2_1_3", 4)
	c := newTestClient(t, hub)
	ctx := context.Background()

	p := pagination.Params{Kind: pagination.KindTile, TileID: "2_1_3", TileSchema: "here"}
	resp, err := c.Fetch(ctx, "space", p)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Features) != 4 {
		t.Errorf("features = %d, want 4", len(resp.Features))
	}

	p.TileID = "2_0_0"
	_, err = c.Fetch(ctx, "space", p)
	if !errors.Is(err, pagination.ErrNoData) {
		t.Errorf("Fetch() unknown tile error = %v, want ErrNoData", err)
	}
}

func TestFetch_BBox(t *testing.T) {
	hub := testutil.NewMockHub(0)
	defer hub.Close()
	c := newTestClient(t, hub)
	ctx := context.Background()

	p := pagination.Params{Kind: pagination.KindBBox, BBox: geom.Extent{-1.5, 2, 3, 4.25}, Limit: 10}

	if _, err := c.Fetch(ctx, "space", p); !errors.Is(err, pagination.ErrNoData) {
		t.Errorf("Fetch() empty bbox error = %v, want ErrNoData", err)
	}

	hub.SetBBoxFeatures(3)
	resp, err := c.Fetch(ctx, "space", p)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(resp.Features))
	}

	var f struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Features[0], &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.ID != "b-1.5_2_0" {
		t.Errorf("id = %q, want query west=-1.5 south=2", f.ID)
	}
}

func TestFetch_ServerErrorNotRetried(t *testing.T) {
	hub := testutil.NewMockHub(-1)
	defer hub.Close()
	hub.FailPage(0, 100, http.StatusInternalServerError)
	c := newTestClient(t, hub)

	_, err := c.Fetch(context.Background(), "space", cursor(100, 0))

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Fetch() error = %v, want *NetworkError", err)
	}
	if ne.Status != 500 || !ne.Retryable() || ne.Tag != "iterate" {
		t.Errorf("NetworkError = %+v, want retryable 500 iterate", ne)
	}
	if hub.Requests() != 1 {
		t.Errorf("requests = %d, want 1", hub.Requests())
	}
}

func TestFetch_RateLimitRetried(t *testing.T) {
	hub := testutil.NewMockHub(-1)
	defer hub.Close()
	hub.FailPage(0, 10, http.StatusTooManyRequests, http.StatusTooManyRequests)
	c := newTestClient(t, hub)

	resp, err := c.Fetch(context.Background(), "space", cursor(10, 0))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Features) != 10 {
		t.Errorf("features = %d, want 10", len(resp.Features))
	}
	if hub.Requests() != 3 {
		t.Errorf("requests = %d, want 3", hub.Requests())
	}
}

func TestFetch_ClientErrorTerminal(t *testing.T) {
	hub := testutil.NewMockHub(-1)
	defer hub.Close()
	c := newTestClient(t, hub)

	_, err := c.Fetch(context.Background(), "space", cursor(0, 0))
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.Status != http.StatusBadRequest || ne.Retryable() {
		t.Errorf("Fetch() error = %v, want non-retryable 400", err)
	}
}

func TestFetch_Reauth(t *testing.T) {
	hub := testutil.NewMockHub(10)
	defer hub.Close()
	hub.RequireToken("fresh")

	var issued atomic.Int32
	tokens := NewRefreshingToken(func(context.Context) (string, error) {
		if issued.Add(1) == 1 {
			return "stale", nil
		}
		return "fresh", nil
	})
	c := newTestClient(t, hub, func(cfg *Config) { cfg.Tokens = tokens })

	if _, err := c.Fetch(context.Background(), "space", cursor(5, 0)); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if issued.Load() != 2 {
		t.Errorf("tokens issued = %d, want 2", issued.Load())
	}
}

func TestFetch_AuthenticationError(t *testing.T) {
	hub := testutil.NewMockHub(10)
	defer hub.Close()
	hub.RequireToken("valid")
	c := newTestClient(t, hub, func(cfg *Config) { cfg.Tokens = StaticToken("wrong") })

	_, err := c.Fetch(context.Background(), "space", cursor(5, 0))

	var ae *AuthenticationError
	if !errors.As(err, &ae) {
		t.Fatalf("Fetch() error = %v, want *AuthenticationError", err)
	}
	if ae.Attempts != DefaultMaxReauth {
		t.Errorf("Attempts = %d, want %d", ae.Attempts, DefaultMaxReauth)
	}
	if !errors.Is(err, ErrAuthExpired) {
		t.Error("AuthenticationError should wrap ErrAuthExpired")
	}
	if hub.Requests() != DefaultMaxReauth+1 {
		t.Errorf("requests = %d, want %d", hub.Requests(), DefaultMaxReauth+1)
	}
}

func TestFetch_Timeout(t *testing.T) {
	hub := testutil.NewMockHub(10)
	defer hub.Close()
	hub.SetHandler("iterate", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.Context().Done():
		}
	})
	c := newTestClient(t, hub, func(cfg *Config) { cfg.Timeout = 20 * time.Millisecond })

	_, err := c.Fetch(context.Background(), "space", cursor(5, 0))
	if !errors.Is(err, ErrNetworkTimeout) {
		t.Errorf("Fetch() error = %v, want ErrNetworkTimeout", err)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Fetch() error = %v, want ErrRetryExhausted", err)
	}
}

func TestPutFeatures_Batches(t *testing.T) {
	hub := testutil.NewMockHub(0)
	defer hub.Close()
	c := newTestClient(t, hub, func(cfg *Config) { cfg.MaxPayloadBytes = 1000 })

	features := make([]json.RawMessage, 20)
	for i := range features {
		features[i] = testutil.PointFeature(int64(i))
	}

	n, err := c.PutFeatures(context.Background(), "space", features)
	if err != nil {
		t.Fatalf("PutFeatures() error = %v", err)
	}

	uploads := hub.Uploads()
	if n != len(uploads) || n < 2 {
		t.Fatalf("PutFeatures() = %d batches, hub saw %d, want >= 2", n, len(uploads))
	}

	var got []json.RawMessage
	for _, u := range uploads {
		got = append(got, u...)
	}
	if len(got) != len(features) {
		t.Fatalf("uploaded %d features, want %d", len(got), len(features))
	}
	for i := range features {
		if string(got[i]) != string(features[i]) {
			t.Errorf("feature %d out of order", i)
		}
	}
}

func TestPutFeatures_TooLarge(t *testing.T) {
	hub := testutil.NewMockHub(0)
	defer hub.Close()
	c := newTestClient(t, hub, func(cfg *Config) { cfg.MaxPayloadBytes = 100 })

	_, err := c.PutFeatures(context.Background(), "space", []json.RawMessage{testutil.PointFeature(1)})
	if err == nil {
		t.Fatal("PutFeatures() should fail for a feature over budget")
	}
	if len(hub.Uploads()) != 0 {
		t.Error("nothing should be uploaded")
	}
}

func TestDeleteFeatures_Batches(t *testing.T) {
	hub := testutil.NewMockHub(0)
	defer hub.Close()
	c := newTestClient(t, hub, func(cfg *Config) { cfg.MaxURLLength = len(hub.URL()) + 120 })

	ids := make([]string, 30)
	for i := range ids {
		ids[i] = fmt.Sprintf("feature-%02d", i)
	}

	n, err := c.DeleteFeatures(context.Background(), "space", ids)
	if err != nil {
		t.Fatalf("DeleteFeatures() error = %v", err)
	}

	deletes := hub.Deletes()
	if n != len(deletes) || n < 2 {
		t.Fatalf("DeleteFeatures() = %d batches, hub saw %d, want >= 2", n, len(deletes))
	}
	var got []string
	for _, d := range deletes {
		got = append(got, d...)
	}
	if len(got) != len(ids) {
		t.Fatalf("deleted %d ids, want %d", len(got), len(ids))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Errorf("id %d = %s, want %s", i, got[i], ids[i])
		}
	}
}

func TestParseHandle(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		isNil   bool
		wantErr bool
	}{
		{``, 0, true, false},
		{`null`, 0, true, false},
		{`100`, 100, false, false},
		{`"250"`, 250, false, false},
		{`"abc"`, 0, false, true},
		{`1.5`, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseHandle(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHandle(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.isNil != (got == nil) {
				t.Fatalf("parseHandle(%s) = %v, want nil %v", tt.raw, got, tt.isNil)
			}
			if got != nil && *got != tt.want {
				t.Errorf("parseHandle(%s) = %d, want %d", tt.raw, *got, tt.want)
			}
		})
	}
}
