package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	assessQuery    string
	assessRadiance float64
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score a destination's safety vibe",
	Long:  "Resolves --query to a place, fetches its crime baseline, scores lighting from --radiance and prints the classified result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, cfg, "assess")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Service.Assess(ctx, assessQuery, assessRadiance)
		if err != nil {
			zap.L().Error("assessment failed", zap.String("query", assessQuery), zap.Error(err))
			return err
		}

		return writeOutput(cmd.OutOrStdout(), outputFormat, result)
	},
}

func init() {
	assessCmd.Flags().StringVar(&assessQuery, "query", "", "destination name or address (required)")
	assessCmd.Flags().Float64Var(&assessRadiance, "radiance", 0, "night-time radiance at the destination in nW/cm²/sr (required)")
	_ = assessCmd.MarkFlagRequired("query")
	_ = assessCmd.MarkFlagRequired("radiance")
	rootCmd.AddCommand(assessCmd)
}
