package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmarins/newsbrief/internal/config"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the topic catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		flagship := cfg.Flagship()
		for _, t := range cfg.Topics {
			marker := " "
			if t.Name == flagship {
				marker = "*"
			}
			fallback := "-"
			if t.FallbackQuery != "" {
				fallback = t.FallbackQuery
			}
			fmt.Printf("%s %-16s %3dh  %-40s fallback: %s\n",
				marker, t.Name, t.FreshnessHours, t.Query, fallback)
		}
		fmt.Println("\n* flagship topic (always samples the metered backup once a day)")
		return nil
	},
}
