package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/dataset"
)

var (
	evalTrainData    string
	evalTrainClasses string
	evalTestData     string
	evalTestClasses  string
	evalJSON         bool
	evalProfile      bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Train on one set and report training and test error",
	Long: `Train the model on the training files, classify both the training set and the
test set, and report the error of each as a percentage of mislabeled mails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := setupRun(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		train, err := env.load(
			orDefault(evalTrainData, env.cfg.Data.TrainData),
			orDefault(evalTrainClasses, env.cfg.Data.TrainClasses),
		)
		if err != nil {
			return fmt.Errorf("failed to load training data: %w", err)
		}

		var test *dataset.Dataset
		testData := orDefault(evalTestData, env.cfg.Data.TestData)
		testClasses := orDefault(evalTestClasses, env.cfg.Data.TestClasses)
		if testData != "" && testClasses != "" {
			test, err = env.load(testData, testClasses)
			if err != nil {
				return fmt.Errorf("failed to load test data: %w", err)
			}
		}

		results, err := env.filter.Evaluate(ctx, train, test)
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}

		if evalJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		fmt.Printf("📊 Naive Bayes Evaluation\n")
		fmt.Printf("═══════════════════════════════════════\n")
		fmt.Printf("🔖 Run: %s\n", results.RunID)
		fmt.Printf("📚 Training mails: %d", results.TrainSize)
		if results.Skipped > 0 {
			fmt.Printf(" (%d skipped)", results.Skipped)
		}
		fmt.Printf("\n")
		fmt.Printf("🎯 Training error: %.3f%%\n", results.TrainingError)
		if results.TestSize > 0 {
			fmt.Printf("🧪 Test mails: %d\n", results.TestSize)
			fmt.Printf("🎯 Test error: %.3f%%\n", results.TestError)
		}

		if evalProfile {
			fmt.Printf("\n")
			env.filter.Profiler().PrintReport(os.Stdout)
		}
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evalTrainData, "train-data", "", "Training data file (default from config)")
	evaluateCmd.Flags().StringVar(&evalTrainClasses, "train-classes", "", "Training class file (default from config)")
	evaluateCmd.Flags().StringVar(&evalTestData, "test-data", "", "Test data file (default from config)")
	evaluateCmd.Flags().StringVar(&evalTestClasses, "test-classes", "", "Test class file (default from config)")
	evaluateCmd.Flags().BoolVar(&evalJSON, "json", false, "Output results as JSON")
	evaluateCmd.Flags().BoolVar(&evalProfile, "profile", false, "Print phase timings")
}
