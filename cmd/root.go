package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dmarins/newsbrief/internal/aggregate"
	"github.com/dmarins/newsbrief/internal/config"
	"github.com/dmarins/newsbrief/internal/dailycache"
	"github.com/dmarins/newsbrief/internal/source"
	"github.com/dmarins/newsbrief/internal/usage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig           string
	flagRefresh          bool
	flagUnderrepresented []string
)

var rootCmd = &cobra.Command{
	Use:   "newsbrief",
	Short: "Multi-provider daily news aggregator",
	Long: "newsbrief collects news for a fixed topic catalog from several search providers,\n" +
		"merges and deduplicates the results, filters them by per-topic freshness, and\n" +
		"caches one result set per day.",
	RunE: runAggregate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "ignore today's cache and aggregate fresh")
	rootCmd.Flags().StringSliceVar(&flagUnderrepresented, "underrepresented", nil,
		"topics eligible for the relaxed weekly fallback when still empty after retries")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(usageCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newsbrief %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func runAggregate(cmd *cobra.Command, args []string) error {
	// .env is a convenience for local runs; missing is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	agg, cleanup := buildAggregator(cfg)
	defer cleanup()

	result := agg.Aggregate(cmd.Context(), flagRefresh, flagUnderrepresented)
	if len(result) == 0 {
		fmt.Println("No articles aggregated.")
		return nil
	}

	for _, c := range result {
		fmt.Printf("%s (%d)\n", c.Topic, len(c.Articles))
		for _, a := range c.Articles {
			fmt.Printf("  - %s  [%s]\n", a.Title, a.Source)
		}
	}
	return nil
}

func buildAggregator(cfg *config.Config) (*aggregate.Aggregator, func()) {
	var store usage.Store
	cleanup := func() {}
	if sqlStore, err := usage.OpenSQLite(config.UsageDBPath()); err != nil {
		log.Printf("usage: %v (falling back to in-memory counters)", err)
		store = usage.NewMemoryStore()
	} else {
		store = sqlStore
		cleanup = func() { sqlStore.Close() }
	}

	gnews := source.NewGNews(cfg.GNewsKey())
	providers := aggregate.Providers{
		Primary:       gnews,
		PrimaryBackup: source.NewNewsAPI(cfg.NewsAPIKey()),
		MeteredBackup: source.NewSerper(cfg.SerperKey()),
		ScarceBackup:  source.NewMediastack(cfg.MediastackKey()),
		Relaxed:       gnews,
	}

	cache := dailycache.New(config.CacheDir(), cfg.Interactive())
	opts := aggregate.DefaultOptions()
	opts.FlagshipTopic = cfg.Flagship()

	return aggregate.New(cfg.Topics, providers, usage.NewTracker(store), cache, opts), cleanup
}
