package admin

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/ragsync/internal/config"
	"github.com/spf13/cobra"
)

// SyncCmd returns the sync command
func SyncCmd() *cobra.Command {
	var (
		targetsFile string
		only        []string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync configured targets once",
		Long:  "Reconcile every target in the sync targets file with the vector store, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if targetsFile == "" {
				targetsFile = cfg.SyncTargetsFile
			}
			if targetsFile == "" {
				return fmt.Errorf("no sync targets file (use --targets or RAGSYNC_SYNC_TARGETS_FILE)")
			}

			targets, err := config.LoadSyncTargets(targetsFile)
			if err != nil {
				return err
			}
			targets, err = filterTargets(targets, only)
			if err != nil {
				return err
			}

			app, err := Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.SyncScheduler(targets).ProcessJobs(ctx)
		},
	}

	cmd.Flags().StringVarP(&targetsFile, "targets", "f", "", "Sync targets YAML file (default RAGSYNC_SYNC_TARGETS_FILE)")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Sync only the named targets")

	return cmd
}

func filterTargets(targets []config.SyncTarget, names []string) ([]config.SyncTarget, error) {
	if len(names) == 0 {
		return targets, nil
	}

	byName := make(map[string]config.SyncTarget, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
	}

	out := make([]config.SyncTarget, 0, len(names))
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown sync target %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}
