package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"reelnotes/internal/daemon"
	"reelnotes/internal/logging"
	"reelnotes/internal/queue"
	"reelnotes/internal/watcher"
	"reelnotes/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the queue watcher and processing pipeline in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				OutputPaths: []string{
					"stdout",
					filepath.Join(cfg.Paths.LogDir, "reelnotes.log"),
				},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}

			mgr := workflow.NewManager(cfg, store, logger)
			w := watcher.NewWatcher(cfg, store, logger)
			d, err := daemon.New(cfg, store, logger, mgr, w)
			if err != nil {
				store.Close()
				return err
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "reelnotes daemon running, watching %s\n", cfg.Paths.QueueFile)
			<-runCtx.Done()
			d.Stop()
			return nil
		},
	}
}
