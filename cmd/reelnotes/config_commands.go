package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelnotes/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigPathCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set paths.queue_file and, for AI enhancement, gemini.api_key.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Show the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configFlagValue(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path:     %s", path)
			if !exists {
				fmt.Fprint(out, " (not found, defaults in effect)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Queue file:      %s\n", cfg.Paths.QueueFile)
			fmt.Fprintf(out, "Notes dir:       %s\n", cfg.Paths.NotesDir)
			fmt.Fprintf(out, "Attachments dir: %s\n", cfg.Paths.AttachmentsDir)
			fmt.Fprintf(out, "Staging dir:     %s\n", cfg.Paths.StagingDir)
			fmt.Fprintf(out, "Log dir:         %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Transcode:       %s\n", yesNo(cfg.Transcode.Enabled))
			fmt.Fprintf(out, "Auto enhance:    %s\n", yesNo(cfg.Gemini.AutoEnhance))
			fmt.Fprintf(out, "Gemini key set:  %s\n", yesNo(strings.TrimSpace(cfg.Gemini.APIKey) != ""))
			fmt.Fprintf(out, "Ntfy topic set:  %s\n", yesNo(strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""))
			return nil
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file path",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, _, err := config.Load(configFlagValue(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func configFlagValue(cmd *cobra.Command) string {
	flag := cmd.Root().PersistentFlags().Lookup("config")
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(flag.Value.String())
}
