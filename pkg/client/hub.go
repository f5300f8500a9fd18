package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/space-sync/pkg/batch"
	"github.com/Sternrassler/space-sync/pkg/pagination"
)

// FetchResponse is one page of features.
type FetchResponse struct {
	Features []json.RawMessage

	// Handle is the cursor of the next page, nil on the last page.
	Handle *int64
}

type featureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
	Handle   json.RawMessage   `json:"handle,omitempty"`
}

// Fetch reads one page described by p.
func (c *Client) Fetch(ctx context.Context, space string, p pagination.Params) (*FetchResponse, error) {
	r := request{
		method:    http.MethodGet,
		space:     space,
		query:     url.Values{},
		cacheable: true,
	}
	if len(p.Tags) > 0 {
		r.query.Set("tags", strings.Join(p.Tags, ","))
	}

	switch p.Kind {
	case pagination.KindCursor:
		r.endpoint = "iterate"
		r.tag = "iterate"
		r.query.Set("limit", strconv.Itoa(p.Limit))
		r.query.Set("handle", strconv.FormatInt(p.Handle, 10))
	case pagination.KindTile:
		r.endpoint = fmt.Sprintf("tile/%s/%s", url.PathEscape(p.TileSchema), url.PathEscape(p.TileID))
		r.tag = "tile"
	case pagination.KindBBox:
		r.endpoint = "bbox"
		r.tag = "bbox"
		r.query.Set("west", formatCoord(p.BBox.MinX()))
		r.query.Set("south", formatCoord(p.BBox.MinY()))
		r.query.Set("east", formatCoord(p.BBox.MaxX()))
		r.query.Set("north", formatCoord(p.BBox.MaxY()))
		if p.Limit > 0 {
			r.query.Set("limit", strconv.Itoa(p.Limit))
		}
	default:
		return nil, fmt.Errorf("unsupported page kind %s", p.Kind)
	}

	data, err := c.execute(ctx, r)
	if err != nil {
		return nil, err
	}

	resp, err := parseFeatureCollection(data)
	if err != nil {
		return nil, &NetworkError{Status: http.StatusOK, URL: r.url(c.config.BaseURL), Tag: r.tag, Err: err}
	}

	c.logger.Debug().
		Str("space", space).
		Str("page", p.String()).
		Int("features", len(resp.Features)).
		Bool("last", resp.Handle == nil).
		Msg("Fetched page")

	return resp, nil
}

func parseFeatureCollection(data []byte) (*FetchResponse, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	handle, err := parseHandle(fc.Handle)
	if err != nil {
		return nil, err
	}
	return &FetchResponse{Features: fc.Features, Handle: handle}, nil
}

// parseHandle accepts the cursor as a JSON number or a numeric string.
func parseHandle(raw json.RawMessage) (*int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, fmt.Errorf("decode handle: %w", err)
		}
		s = str
	}
	h, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode handle %q: %w", s, err)
	}
	return &h, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PutFeatures uploads features in batches that fit MaxPayloadBytes. It
// returns the number of requests sent.
func (c *Client) PutFeatures(ctx context.Context, space string, features []json.RawMessage) (int, error) {
	envelope := len(`{"type":"FeatureCollection","features":}`)
	chunks, err := batch.Payload(features, c.config.MaxPayloadBytes-envelope)
	if err != nil {
		return 0, fmt.Errorf("batch features: %w", err)
	}

	for i, chunk := range chunks {
		body, err := json.Marshal(featureCollection{Type: "FeatureCollection", Features: chunk})
		if err != nil {
			return i, fmt.Errorf("marshal batch %d: %w", i, err)
		}
		r := request{
			method:   http.MethodPut,
			space:    space,
			endpoint: "features",
			tag:      "upload",
			body:     body,
		}
		if _, err := c.execute(ctx, r); err != nil {
			return i, fmt.Errorf("upload batch %d/%d: %w", i+1, len(chunks), err)
		}
		c.logger.Debug().
			Str("space", space).
			Int("batch", i+1).
			Int("batches", len(chunks)).
			Int("features", len(chunk)).
			Int("bytes", len(body)).
			Msg("Uploaded batch")
	}
	return len(chunks), nil
}

// DeleteFeatures removes features by id in batches that keep each URL
// within MaxURLLength. It returns the number of requests sent.
func (c *Client) DeleteFeatures(ctx context.Context, space string, ids []string) (int, error) {
	base := request{space: space, endpoint: "features"}
	baseLen := len(base.url(c.config.BaseURL)) + 1
	// each id costs "id=" plus its escaped form
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = "id=" + url.QueryEscape(id)
	}
	chunks := batch.IDs(escaped, c.config.MaxURLLength, baseLen)

	offset := 0
	for i, chunk := range chunks {
		q := url.Values{"id": ids[offset : offset+len(chunk)]}
		offset += len(chunk)

		r := request{
			method:   http.MethodDelete,
			space:    space,
			endpoint: "features",
			tag:      "delete",
			query:    q,
		}
		if _, err := c.execute(ctx, r); err != nil {
			return i, fmt.Errorf("delete batch %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return len(chunks), nil
}
