package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/dataset"
)

var (
	trainDataPath  string
	trainClassPath string
	trainTop       int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the Naive Bayes model",
	Long: `Train the frequency-table model on a data file and its class file and print
the resulting model statistics.

When the Redis mirror is enabled the counts are published there as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := setupRun(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		dataPath := orDefault(trainDataPath, env.cfg.Data.TrainData)
		classPath := orDefault(trainClassPath, env.cfg.Data.TrainClasses)

		fmt.Printf("🧠 Naive Bayes Training\n")
		fmt.Printf("═══════════════════════════════════════\n")
		fmt.Printf("📁 Data: %s\n", dataPath)
		fmt.Printf("🏷️  Classes: %s\n", classPath)
		fmt.Printf("🔖 Run: %s\n\n", env.filter.RunID())

		ds, err := env.load(dataPath, classPath)
		if err != nil {
			return fmt.Errorf("failed to load training data: %w", err)
		}

		start := time.Now()
		res, err := env.filter.Train(ctx, ds)
		if err != nil {
			return fmt.Errorf("training failed: %w", err)
		}
		duration := time.Since(start)

		fmt.Printf("✅ Learned %d observations", res.Applied)
		if res.Skipped > 0 {
			fmt.Printf(" (%d skipped)", res.Skipped)
		}
		fmt.Printf("\n")
		fmt.Printf("⏱️  Time taken: %v\n", duration)
		if duration > 0 {
			fmt.Printf("📈 Rate: %.0f observations/second\n", float64(res.Applied)/duration.Seconds())
		}
		if env.mirror != nil {
			fmt.Printf("📡 Counts published to Redis under %q\n", env.cfg.Redis.KeyPrefix)
		}

		fmt.Printf("\n")
		env.filter.Model().PrintStats(os.Stdout)

		if trainTop > 0 {
			for _, class := range env.filter.Model().Classes() {
				printTopValues(env, class, trainTop)
			}
		}
		return nil
	},
}

// printTopValues lists the attribute values most indicative of class
func printTopValues(env *runEnv, class, limit int) {
	top, err := env.filter.Model().TopValues(class, limit)
	if err != nil {
		fmt.Printf("⚠️  %v\n", err)
		return
	}

	var vocab []string
	if env.cfg.Data.Vocabulary != "" {
		if words, err := dataset.LoadVocabulary(env.cfg.Data.Vocabulary); err == nil {
			vocab = words
		} else {
			env.log.Debug("vocabulary not loaded", "error", err)
		}
	}

	fmt.Printf("\n🔝 Most indicative values for class %d:\n", class)
	for i, s := range top {
		name := s.Attribute
		if idx, ok := attributeIndex(name); ok && idx < len(vocab) {
			name = vocab[idx]
		}
		fmt.Printf("  %2d. %-20s = %v  (in class: %d, elsewhere: %d, llr: %.2f)\n",
			i+1, name, s.Value, s.Count, s.RestCount, s.LogRatio)
	}
}

func init() {
	trainCmd.Flags().StringVarP(&trainDataPath, "data", "d", "", "Data file, one comma-separated record per line (default from config)")
	trainCmd.Flags().StringVar(&trainClassPath, "classes", "", "Class file with one label per record (default from config)")
	trainCmd.Flags().IntVar(&trainTop, "top", 0, "Show the N most indicative values per class")
}
