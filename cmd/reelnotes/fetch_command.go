package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelnotes/internal/config"
	"reelnotes/internal/queue"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>",
		Short: "Enqueue an Instagram URL without editing the queue document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			canonical, err := queue.CanonicalURL(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				item, inserted, err := store.InsertURL(cmd.Context(), canonical, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !inserted {
					fmt.Fprintf(out, "Already in queue as item %d (%s)\n", item.ID, item.Status)
					return nil
				}
				fmt.Fprintf(out, "Queued item %d: %s\n", item.ID, canonical)
				fmt.Fprintln(out, "The daemon will pick it up; start one with `reelnotes daemon` if none is running.")
				return nil
			})
		},
	}
}
