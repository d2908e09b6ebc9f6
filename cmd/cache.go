package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmarins/newsbrief/internal/config"
	"github.com/dmarins/newsbrief/internal/dailycache"
)

var flagCacheDate string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show a day's cached aggregation result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store := dailycache.New(config.CacheDir(), cfg.Interactive())
		date := cacheDate()
		entries := store.Read(date)
		if entries == nil {
			fmt.Printf("No usable cache entry for %s.\n", date)
			if dates := store.Dates(); len(dates) > 0 {
				fmt.Printf("Available dates: %s\n", strings.Join(dates, ", "))
			}
			return nil
		}

		total := 0
		for _, c := range entries {
			fmt.Printf("%-16s %d article(s)\n", c.Topic, len(c.Articles))
			total += len(c.Articles)
		}
		fmt.Printf("\n%d topic(s), %d article(s) for %s\n", len(entries), total, date)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete a day's cache file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store := dailycache.New(config.CacheDir(), cfg.Interactive())
		date := cacheDate()
		store.Clear(date)
		fmt.Printf("Cleared cache for %s.\n", date)
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&flagCacheDate, "date", "", "cache date (YYYY-MM-DD, default: today)")
	cacheCmd.AddCommand(cacheClearCmd)
}

func cacheDate() string {
	if flagCacheDate != "" {
		return flagCacheDate
	}
	return time.Now().Format("2006-01-02")
}
