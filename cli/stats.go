package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"scooby/session"
)

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show property counts and average prices per city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := newSession(nil, session.Options{})
			defer s.Close()

			counts, err := s.CityStats.Load(cmd.Context(), nil)
			if err != nil {
				return fmt.Errorf("failed to load city stats: %w", err)
			}
			prices, err := s.PriceStats.Load(cmd.Context(), nil)
			if err != nil {
				return fmt.Errorf("failed to load price stats: %w", err)
			}
			renderCityStats(cmd.OutOrStdout(), counts, prices)
			return nil
		},
	}
}
