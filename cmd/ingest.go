package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grantbridge/vetting-cli/internal/fetcher"
	"github.com/grantbridge/vetting-cli/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download and load the government lists",
}

var ingestRevocationsCmd = &cobra.Command{
	Use:   "revocations",
	Short: "Refresh the IRS auto-revocation list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), func(ctx context.Context, ing *ingest.Ingester) (int, error) {
			return ing.SyncRevocations(ctx)
		})
	},
}

var ingestSanctionsCmd = &cobra.Command{
	Use:   "sanctions",
	Short: "Refresh the OFAC sanctions list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), func(ctx context.Context, ing *ingest.Ingester) (int, error) {
			return ing.SyncSanctions(ctx)
		})
	},
}

var ingestAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Refresh every government list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), func(ctx context.Context, ing *ingest.Ingester) (int, error) {
			revocations, err := ing.SyncRevocations(ctx)
			if err != nil {
				return 0, err
			}
			sanctions, err := ing.SyncSanctions(ctx)
			if err != nil {
				return 0, err
			}
			return revocations + sanctions, nil
		})
	},
}

func init() {
	ingestCmd.AddCommand(ingestRevocationsCmd, ingestSanctionsCmd, ingestAllCmd)
	rootCmd.AddCommand(ingestCmd)
}

// runIngest opens the store, builds the downloader, and runs one sync
// function with signal-aware cancellation.
func runIngest(parent context.Context, sync func(context.Context, *ingest.Ingester) (int, error)) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate store")
	}

	fetch := fetcher.New(fetcher.Options{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})

	start := time.Now()
	n, err := sync(ctx, ingest.New(fetch, st, cfg.Ingest))
	if err != nil {
		return err
	}

	zap.L().Info("ingest complete",
		zap.Int("records", n),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
	)
	return nil
}
