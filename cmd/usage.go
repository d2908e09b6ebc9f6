package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmarins/newsbrief/internal/aggregate"
	"github.com/dmarins/newsbrief/internal/config"
	"github.com/dmarins/newsbrief/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's metered provider call counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := usage.OpenSQLite(config.UsageDBPath())
		if err != nil {
			return fmt.Errorf("opening usage store: %w", err)
		}
		defer store.Close()

		tracker := usage.NewTracker(store)
		fmt.Printf("serper      %d/%d\n", tracker.Today("serper"), aggregate.SerperDailyBudget)
		fmt.Printf("mediastack  %d/%d\n", tracker.Today("mediastack"), aggregate.MediastackDailyCap)
		return nil
	},
}
