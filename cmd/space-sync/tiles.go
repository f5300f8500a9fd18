package main

import (
	"fmt"

	"github.com/Sternrassler/space-sync/pkg/tile"
	"github.com/spf13/cobra"
)

func tilesCmd() *cobra.Command {
	var (
		level  int
		schema string
		bbox   []float64
	)

	cmd := &cobra.Command{
		Use:   "tiles",
		Short: "List the tiles covering the bbox, centre first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc := cfg.Fetch
			if cmd.Flags().Changed("level") {
				fc.TileLevel = level
			}
			if cmd.Flags().Changed("schema") {
				fc.TileSchema = schema
			}
			if cmd.Flags().Changed("bbox") {
				fc.BBox = bbox
			}

			ext, err := fc.Extent()
			if err != nil {
				return err
			}
			ids, err := tile.Decompose(ext, fc.TileLevel, tile.Schema(fc.TileSchema))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range ids {
				t, err := tile.ParseID(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\n", id, t.Quadkey())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "tile level")
	cmd.Flags().StringVar(&schema, "schema", "", "here or web")
	cmd.Flags().Float64SliceVar(&bbox, "bbox", nil, "west,south,east,north")
	return cmd
}
