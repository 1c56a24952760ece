package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelnotes/internal/notes"
	"reelnotes/internal/queue"
	"reelnotes/internal/scrape"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Fetch post metadata without queueing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			canonical, err := queue.CanonicalURL(args[0])
			if err != nil {
				return err
			}

			scraper := scrape.NewScraper(cfg)
			meta, err := scraper.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "json":
				encoded, err := json.MarshalIndent(meta, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(encoded))
			case "markdown", "":
				doc := notes.Build(notes.BuildInput{Meta: *meta, SourceURL: canonical})
				rendered, err := doc.Render()
				if err != nil {
					return err
				}
				fmt.Fprint(out, rendered)
			default:
				return fmt.Errorf("unsupported format %q (use json or markdown)", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: json or markdown")
	return cmd
}
