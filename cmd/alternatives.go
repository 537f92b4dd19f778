package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/glowpath/internal/assess"
)

var (
	altQuery    string
	altRadiance float64
	altAt       string
	altRadius   float64
)

var alternativesCmd = &cobra.Command{
	Use:   "alternatives",
	Short: "Rank open venues near a destination by vibe",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		at, err := parseVisitTime(altAt)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, cfg, "alternatives")
		if err != nil {
			return err
		}
		defer env.Close()

		ranked, err := env.Service.RankAlternatives(ctx, assess.AlternativesRequest{
			Query:        altQuery,
			Radiance:     altRadiance,
			At:           at,
			RadiusMeters: altRadius,
		})
		if err != nil {
			zap.L().Error("ranking failed", zap.String("query", altQuery), zap.Error(err))
			return err
		}

		zap.L().Info("alternatives ranked", zap.String("query", altQuery), zap.Int("count", len(ranked)))
		return writeOutput(cmd.OutOrStdout(), outputFormat, ranked)
	},
}

// parseVisitTime parses an RFC 3339 timestamp. Empty means now.
func parseVisitTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse --at %q", s)
	}
	return t, nil
}

func init() {
	alternativesCmd.Flags().StringVar(&altQuery, "query", "", "destination name or address (required)")
	alternativesCmd.Flags().Float64Var(&altRadiance, "radiance", 0, "night-time radiance at the destination (required)")
	alternativesCmd.Flags().StringVar(&altAt, "at", "", "visit time, RFC 3339 (default now)")
	alternativesCmd.Flags().Float64Var(&altRadius, "radius", 0, "search radius in meters (default from config)")
	_ = alternativesCmd.MarkFlagRequired("query")
	_ = alternativesCmd.MarkFlagRequired("radiance")
	rootCmd.AddCommand(alternativesCmd)
}
