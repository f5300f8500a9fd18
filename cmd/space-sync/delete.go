package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete space id...",
		Short: "Delete features by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hub, err := newHubClient(cfg, nil)
			if err != nil {
				return err
			}
			defer hub.Close()

			space, ids := args[0], args[1:]
			n, err := hub.DeleteFeatures(cmd.Context(), space, ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d features from %s in %d requests\n", len(ids), space, n)
			return nil
		},
	}
}
