package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Sternrassler/space-sync/internal/config"
	"github.com/Sternrassler/space-sync/pkg/loader"
	"github.com/Sternrassler/space-sync/pkg/store"
	"github.com/Sternrassler/space-sync/pkg/task"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	var (
		mode        string
		limit       int
		maxFeatures int
		parallel    int
		threshold   int
		tags        []string
		uploadTo    string
	)

	cmd := &cobra.Command{
		Use:   "fetch [space]",
		Short: "Fetch a space and group its features by schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc := cfg.Fetch
			if len(args) == 1 {
				fc.Space = args[0]
			}
			flags := cmd.Flags()
			if flags.Changed("mode") {
				fc.Mode = mode
			}
			if flags.Changed("limit") {
				fc.Limit = limit
			}
			if flags.Changed("max-features") {
				fc.MaxFeatures = maxFeatures
			}
			if flags.Changed("parallel") {
				fc.Parallel = parallel
			}
			if flags.Changed("threshold") {
				fc.SimilarityThreshold = threshold
			}
			if flags.Changed("tags") {
				fc.Tags = tags
			}
			if fc.Space == "" {
				return errors.New("no space given (argument or fetch.space)")
			}
			return runFetch(cmd.Context(), cmd.OutOrStdout(), cfg, fc, uploadTo)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "iterate, tile or bbox")
	cmd.Flags().IntVar(&limit, "limit", 0, "initial page size")
	cmd.Flags().IntVar(&maxFeatures, "max-features", 0, "stop after this many features (0 = all)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent iterations")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "schema similarity threshold [0, 100]")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "tag filter passed to the hub")
	cmd.Flags().StringVar(&uploadTo, "upload-to", "", "upload the fetched features to this space")
	return cmd
}

// runFetch runs one session to completion. Cancelling ctx stops the session
// gracefully: in-flight pages are still stored.
func runFetch(ctx context.Context, out io.Writer, c *config.Config, fc config.FetchConfig, uploadTo string) error {
	rdb, err := newRedis(ctx, c.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	hub, err := newHubClient(c, rdb)
	if err != nil {
		return err
	}
	defer hub.Close()

	params, err := loaderParams(fc)
	if err != nil {
		return err
	}

	mem := store.NewMemory()
	l := loader.New(hub, mem, loader.WithThreshold(fc.SimilarityThreshold))

	events, cancel := l.Subscribe()
	defer cancel()
	go logEvents(events)

	s, err := l.Start(context.WithoutCancel(ctx), loader.Conn{Space: fc.Space}, loader.Meta{Name: layerName(fc)}, params)
	if err != nil {
		return err
	}

	select {
	case <-s.Done():
	case <-ctx.Done():
		log.Info().Msg("Interrupted, finishing in-flight pages")
		l.Stop()
	}
	fetchErr := l.Wait()

	printSummary(out, s, mem)
	if errors.Is(fetchErr, task.ErrManualInterrupt) {
		return nil
	}
	if fetchErr != nil {
		return fetchErr
	}

	if uploadTo == "" {
		return nil
	}
	var raws []json.RawMessage
	for _, h := range mem.Groups() {
		for _, r := range mem.Rows(h) {
			raws = append(raws, r.Raw)
		}
	}
	n, err := hub.PutFeatures(ctx, uploadTo, raws)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "uploaded %d features to %s in %d requests\n", len(raws), uploadTo, n)
	return nil
}
