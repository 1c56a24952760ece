package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reelnotes/internal/config"
	"reelnotes/internal/fileutil"
	"reelnotes/internal/notes"
	"reelnotes/internal/services/gemini"
)

func newEnhanceCommand(ctx *commandContext) *cobra.Command {
	var forceVideo bool
	var textOnly bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "enhance <note>",
		Short: "Run AI enhancement on an existing note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceVideo && textOnly {
				return fmt.Errorf("--force-video and --text-only are mutually exclusive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			client := gemini.NewClient(gemini.Config{
				APIKey:                cfg.Gemini.APIKey,
				BaseURL:               cfg.Gemini.BaseURL,
				QualityModel:          cfg.Gemini.QualityModel,
				EnhanceModel:          cfg.Gemini.EnhanceModel,
				QualityTimeoutSeconds: cfg.Gemini.QualityTimeout,
				EnhanceTimeoutSeconds: cfg.Gemini.EnhanceTimeout,
				UploadTimeoutSeconds:  cfg.Gemini.UploadTimeout,
			})
			if !client.Configured() {
				return fmt.Errorf("gemini api key not configured; set [gemini] api_key in the config file")
			}

			notePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(notePath)
			if err != nil {
				return fmt.Errorf("read note: %w", err)
			}
			doc, err := notes.Parse(string(raw))
			if err != nil {
				return fmt.Errorf("parse note: %w", err)
			}

			out := cmd.OutOrStdout()
			if doc.Front.AIEnhanced && !forceVideo && !textOnly {
				fmt.Fprintln(out, "Note is already enhanced; use --force-video or --text-only to redo it")
				return nil
			}

			description, _ := doc.Section(notes.SectionDescription)
			mediaPath := resolveNoteMedia(cfg, doc)

			mode, err := chooseMode(cmd.Context(), client, cfg, description, mediaPath, forceVideo, textOnly)
			if err != nil {
				return err
			}

			var content *gemini.EnhancedContent
			switch mode {
			case "video":
				if mediaPath == "" {
					return fmt.Errorf("note has no reachable video attachment for video enhancement")
				}
				fmt.Fprintf(out, "Enhancing from video %s\n", filepath.Base(mediaPath))
				content, err = client.EnhanceVideo(cmd.Context(), mediaPath, description)
			default:
				fmt.Fprintln(out, "Enhancing from caption text")
				content, err = client.EnhanceText(cmd.Context(), description, doc.Front.Author)
			}
			if err != nil {
				return err
			}

			if dryRun {
				encoded, err := json.MarshalIndent(content, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(encoded))
				return nil
			}

			notes.Amend(doc, content, cfg.Gemini.EnhanceModel)
			rendered, err := doc.Render()
			if err != nil {
				return err
			}
			if err := fileutil.WriteFileAtomic(notePath, []byte(rendered), 0o644); err != nil {
				return fmt.Errorf("write note: %w", err)
			}
			fmt.Fprintf(out, "Enhanced %s (%s mode)\n", notePath, mode)
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceVideo, "force-video", false, "Enhance from the video even when the caption is sufficient")
	cmd.Flags().BoolVar(&textOnly, "text-only", false, "Enhance from the caption only, never upload the video")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the enhancement instead of rewriting the note")
	return cmd
}

func chooseMode(ctx context.Context, client *gemini.Client, cfg *config.Config, description, mediaPath string, forceVideo, textOnly bool) (string, error) {
	switch {
	case forceVideo:
		return "video", nil
	case textOnly:
		return "text", nil
	}
	if strings.TrimSpace(description) == "" {
		if mediaPath != "" {
			return "video", nil
		}
		return "", fmt.Errorf("note has neither caption text nor a video attachment")
	}
	assessment, err := client.CheckQuality(ctx, description)
	if err != nil {
		return "", fmt.Errorf("quality check failed (use --force-video or --text-only to pick a mode): %w", err)
	}
	if assessment.SufficientDetail && assessment.Confidence >= cfg.Gemini.ConfidenceFloor {
		return "text", nil
	}
	if mediaPath != "" {
		return "video", nil
	}
	return "text", nil
}

// resolveNoteMedia finds the attachment referenced by the note's video embed.
func resolveNoteMedia(cfg *config.Config, doc *notes.Document) string {
	body, ok := doc.Section(notes.SectionVideo)
	if !ok {
		return ""
	}
	embed := strings.TrimSpace(body)
	embed = strings.TrimPrefix(embed, "![[")
	embed = strings.TrimSuffix(embed, "]]")
	if embed == "" || strings.ContainsAny(embed, "\n") {
		return ""
	}
	candidate := filepath.Join(cfg.Paths.AttachmentsDir, embed)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}
