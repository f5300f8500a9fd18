package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/space-sync/internal/config"
	"github.com/Sternrassler/space-sync/pkg/client"
	"github.com/Sternrassler/space-sync/pkg/event"
	"github.com/Sternrassler/space-sync/pkg/loader"
	"github.com/Sternrassler/space-sync/pkg/logging"
	"github.com/Sternrassler/space-sync/pkg/store"
	"github.com/Sternrassler/space-sync/pkg/tile"
	"github.com/redis/go-redis/v9"
)

// newRedis connects to redis when an address is configured. It returns nil
// without one.
func newRedis(ctx context.Context, rc config.RedisConfig) (*redis.Client, error) {
	if !rc.Enabled() {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", rc.Addr, err)
	}
	return rdb, nil
}

func newHubClient(c *config.Config, rdb *redis.Client) (*client.Client, error) {
	cc := client.DefaultConfig(c.Hub.BaseURL)
	cc.UserAgent = c.Hub.UserAgent
	cc.Timeout = c.Hub.Timeout()
	cc.RatePerSecond = c.Hub.RatePerSecond
	cc.Burst = c.Hub.Burst
	cc.MaxReauth = c.Hub.MaxReauth
	cc.MaxPayloadBytes = c.Batch.PayloadBytes
	cc.MaxURLLength = c.Batch.URLLength
	cc.Redis = rdb
	cc.CacheTTL = c.Redis.CacheTTL()
	if c.Hub.Token != "" {
		cc.Tokens = client.StaticToken(c.Hub.Token)
	}
	return client.New(cc)
}

func loaderParams(fc config.FetchConfig) (loader.Params, error) {
	p := loader.Params{
		Mode:        loader.Mode(fc.Mode),
		Limit:       fc.Limit,
		MaxFeatures: fc.MaxFeatures,
		Parallel:    fc.Parallel,
		Tags:        fc.Tags,
		TileLevel:   fc.TileLevel,
		TileSchema:  tile.Schema(fc.TileSchema),
		GridX:       fc.GridX,
		GridY:       fc.GridY,
		MaxDepth:    fc.MaxDepth,
	}
	if p.Mode == loader.ModeTile || p.Mode == loader.ModeBBox {
		ext, err := fc.Extent()
		if err != nil {
			return loader.Params{}, err
		}
		p.Extent = ext
	}
	return p, nil
}

func layerName(fc config.FetchConfig) string {
	if fc.Layer != "" {
		return fc.Layer
	}
	return fc.Space
}

// logEvents drains a subscription until it is cancelled.
func logEvents(events <-chan event.Event) {
	logger := logging.NewLogger("cli")
	for e := range events {
		switch e.Type {
		case event.TypeProgress:
			logger.Debug().Str("session", e.Session).Int("active", e.Active).Msg("Progress")
		case event.TypeResults:
			logger.Debug().
				Str("session", e.Session).
				Str("group", store.Handle{GeometryType: e.Batch.GeometryType, Ordinal: e.Batch.Ordinal}.String()).
				Int("features", e.Batch.Features).
				Bool("new_group", e.Batch.Created).
				Msg("Results")
		case event.TypeError:
			logger.Warn().Err(e.Err).Str("session", e.Session).Msg("Session error")
		case event.TypeFinished:
			logger.Debug().Str("session", e.Session).Msg("Session finished")
		}
	}
}

func printSummary(w io.Writer, s *loader.Session, mem *store.Memory) {
	fmt.Fprintf(w, "session %s: %s, %d features\n", s.ID(), s.Status(), s.Count())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tROWS\tFIELDS")
	for _, h := range mem.Groups() {
		fields := mem.Fields(h)
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name + ":" + f.Type.String()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", h, len(mem.Rows(h)), strings.Join(names, ","))
	}
	tw.Flush()
}
