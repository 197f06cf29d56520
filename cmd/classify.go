package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/dataset"
)

var (
	classifyTrainData    string
	classifyTrainClasses string
	classifyDataPath     string
	classifyScores       bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Label every record of a data file",
	Long: `Train the model on the training files, then print one label per line for each
record of --data. Values equal to learning.missing_value are treated as unknown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if classifyDataPath == "" {
			return fmt.Errorf("--data must be specified")
		}
		ctx := cmd.Context()

		env, err := setupRun(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		train, err := env.load(
			orDefault(classifyTrainData, env.cfg.Data.TrainData),
			orDefault(classifyTrainClasses, env.cfg.Data.TrainClasses),
		)
		if err != nil {
			return fmt.Errorf("failed to load training data: %w", err)
		}
		if _, err := env.filter.Train(ctx, train); err != nil {
			return fmt.Errorf("training failed: %w", err)
		}

		f, err := os.Open(classifyDataPath)
		if err != nil {
			return fmt.Errorf("failed to open data file: %w", err)
		}
		defer f.Close()

		vectors, err := dataset.ReadRecords(f)
		if err != nil {
			return fmt.Errorf("%s: %w", classifyDataPath, err)
		}

		labels, err := env.filter.Classify(vectors)
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}

		for i, label := range labels {
			if !classifyScores {
				fmt.Println(label)
				continue
			}

			scores, err := env.filter.Scores(vectors[i])
			if err != nil {
				return err
			}
			parts := make([]string, len(scores))
			for j, s := range scores {
				parts[j] = fmt.Sprintf("%d:%.4f", s.Class, s.Posterior)
			}
			fmt.Printf("%d\t%s\n", label, strings.Join(parts, " "))
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyTrainData, "train-data", "", "Training data file (default from config)")
	classifyCmd.Flags().StringVar(&classifyTrainClasses, "train-classes", "", "Training class file (default from config)")
	classifyCmd.Flags().StringVarP(&classifyDataPath, "data", "d", "", "Records to classify")
	classifyCmd.Flags().BoolVar(&classifyScores, "scores", false, "Print class posteriors next to each label")
}
