package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/config"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/filter"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/learning"
)

var (
	statsJSON      bool
	statsAttribute string
	statsReset     bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the counts mirrored in Redis",
	Long: `Read back what the last train or evaluate run published to the Redis mirror:
observation totals, class counts and, with --attribute, per-value counts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := cmd.Context()
		mirror, err := learning.NewRedisCountMirror(ctx, filter.RedisConfig(cfg))
		if err != nil {
			return err
		}
		defer mirror.Close()

		if statsReset {
			if err := mirror.Reset(ctx); err != nil {
				return fmt.Errorf("failed to reset mirror: %w", err)
			}
			fmt.Printf("🧹 Mirror under %q cleared\n", cfg.Redis.KeyPrefix)
			return nil
		}

		stats, err := mirror.Stats(ctx)
		if err != nil {
			return err
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Printf("📡 Redis Count Mirror\n")
		fmt.Printf("═══════════════════════════════════════\n")
		fmt.Printf("🔗 URL: %s (db %d)\n", cfg.Redis.RedisURL, cfg.Redis.DatabaseNum)
		fmt.Printf("🔑 Prefix: %s\n", cfg.Redis.KeyPrefix)
		if stats.Total == 0 && len(stats.Classes) == 0 {
			fmt.Printf("\nNothing published yet\n")
			return nil
		}

		fmt.Printf("📚 Observations: %d\n", stats.Total)
		fmt.Printf("🔢 Attributes: %d\n", stats.Attributes)
		fmt.Printf("❓ Unknown values: %s\n", stats.Policy)
		if !stats.LastTrained.IsZero() {
			fmt.Printf("🕒 Last trained: %s (%s ago)\n",
				stats.LastTrained.Format("2006-01-02 15:04:05"), time.Since(stats.LastTrained).Round(time.Second))
		}

		fmt.Printf("\n🏷️  Classes:\n")
		for _, c := range stats.SortedClasses() {
			fmt.Printf("  %-10s %d\n", c, stats.Classes[c])
		}

		if statsAttribute != "" {
			fmt.Printf("\n📊 Value counts for %s:\n", statsAttribute)
			for _, c := range stats.SortedClasses() {
				counts, err := mirror.ValueCounts(ctx, statsAttribute, c)
				if err != nil {
					return err
				}
				fmt.Printf("  class %-6s %v\n", c, counts)
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output stats as JSON")
	statsCmd.Flags().StringVarP(&statsAttribute, "attribute", "a", "", "Also show value counts of this attribute, e.g. x12")
	statsCmd.Flags().BoolVar(&statsReset, "reset", false, "Delete every mirrored key")
}
