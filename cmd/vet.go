package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grantbridge/vetting-cli/internal/vetting"
)

var vetForceRefresh bool

var vetCmd = &cobra.Command{
	Use:   "vet <ein>",
	Short: "Vet a single nonprofit by EIN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initVetting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Pipeline.Vet(ctx, args[0], vetting.VetOptions{
			ForceRefresh: vetForceRefresh,
		})
		if err != nil {
			return err
		}

		logVetOutcome(outcome)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

func logVetOutcome(outcome *vetting.VetOutcome) {
	fields := []zap.Field{
		zap.String("ein", outcome.Result.EIN),
		zap.String("recommendation", string(outcome.Result.Recommendation)),
		zap.Bool("cached", outcome.Cached),
		zap.Int("red_flags", len(outcome.Result.RedFlags)),
	}
	if outcome.Result.Score != nil {
		fields = append(fields, zap.Float64("score", *outcome.Result.Score))
	}
	if outcome.Result.GateBlocked {
		fields = append(fields, zap.String("blocking_gate", outcome.Result.Gates.BlockingGate))
	}
	zap.L().Info("vetting complete", fields...)
}

func init() {
	vetCmd.Flags().BoolVar(&vetForceRefresh, "force-refresh", false, "bypass the result cache and re-evaluate")
	rootCmd.AddCommand(vetCmd)
}
