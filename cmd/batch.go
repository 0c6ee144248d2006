package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grantbridge/vetting-cli/internal/vetting"
)

var (
	batchFile         string
	batchForceRefresh bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [ein...]",
	Short: "Vet a batch of nonprofits concurrently",
	Long:  "Vets every EIN given as an argument or listed in --file (one per line, # comments allowed). Individual failures are logged and do not abort the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eins, err := collectEINs(args, batchFile)
		if err != nil {
			return err
		}

		env, err := initVetting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		outcomes, err := processBatch(ctx, env.Pipeline, eins, cfg.Batch.MaxConcurrent, batchForceRefresh)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file of EINs, one per line")
	batchCmd.Flags().BoolVar(&batchForceRefresh, "force-refresh", false, "bypass the result cache and re-evaluate")
	rootCmd.AddCommand(batchCmd)
}

// collectEINs merges positional arguments with the optional input file
// and deduplicates, preserving first-seen order for duplicates.
func collectEINs(args []string, path string) ([]string, error) {
	eins := append([]string(nil), args...)

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open EIN file %s", path)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			eins = append(eins, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrapf(err, "read EIN file %s", path)
		}
	}

	seen := make(map[string]bool, len(eins))
	unique := eins[:0]
	for _, ein := range eins {
		if seen[ein] {
			continue
		}
		seen[ein] = true
		unique = append(unique, ein)
	}

	if len(unique) == 0 {
		return nil, eris.New("no EINs given; pass them as arguments or via --file")
	}
	return unique, nil
}

// processBatch vets the EINs concurrently and returns the successful
// outcomes sorted by EIN. Individual failures are logged, counted, and
// skipped so one bad EIN never sinks the batch.
func processBatch(ctx context.Context, pipe vetter, eins []string, concurrency int, forceRefresh bool) ([]*vetting.VetOutcome, error) {
	zap.L().Info("processing batch",
		zap.Int("eins", len(eins)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		mu       sync.Mutex
		outcomes []*vetting.VetOutcome
		failed   atomic.Int64
	)

	for _, ein := range eins {
		g.Go(func() error {
			log := zap.L().With(zap.String("ein", ein))

			outcome, err := pipe.Vet(gctx, ein, vetting.VetOptions{ForceRefresh: forceRefresh})
			if err != nil {
				failed.Add(1)
				log.Error("vetting failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()

			log.Info("vetting complete",
				zap.String("recommendation", string(outcome.Result.Recommendation)),
				zap.Bool("cached", outcome.Cached),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Result.EIN < outcomes[j].Result.EIN
	})

	zap.L().Info("batch complete",
		zap.Int("succeeded", len(outcomes)),
		zap.Int64("failed", failed.Load()),
	)
	return outcomes, nil
}
