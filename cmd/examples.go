package cmd

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/config"
	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/dataset"
)

var (
	examplesData    string
	examplesClasses string
	examplesVocab   string
	examplesCount   int
	examplesClass   int
	examplesSeed    uint64
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Show the words of a few random mails",
	Long: `Print the size of the dataset and vocabulary, then list the words present in a
random sample of mails of one class.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ds, err := dataset.Load(
			orDefault(examplesData, cfg.Data.TrainData),
			orDefault(examplesClasses, cfg.Data.TrainClasses),
		)
		if err != nil {
			return err
		}
		vocab, err := dataset.LoadVocabulary(orDefault(examplesVocab, cfg.Data.Vocabulary))
		if err != nil {
			return err
		}

		fmt.Printf("📊 Data: %d mails with %d attributes\n", ds.Len(), ds.Width())
		fmt.Printf("🏷️  Labels: %d\n", len(ds.Labels))
		fmt.Printf("📖 Vocabulary: %d words\n", len(vocab))
		if len(vocab) != ds.Width() {
			fmt.Printf("⚠️  Vocabulary size does not match the attribute count\n")
		}

		seed := examplesSeed
		if !cmd.Flags().Changed("seed") {
			seed = rand.Uint64()
		}
		r := rand.New(rand.NewPCG(seed, seed))

		rows := ds.Sample(r, examplesClass, examplesCount)
		if len(rows) == 0 {
			fmt.Printf("\nNo mails with class %d\n", examplesClass)
			return nil
		}

		fmt.Printf("\n📬 Sample mails of class %d\n", examplesClass)
		fmt.Printf("═══════════════════════════════════════\n")
		for _, row := range rows {
			fmt.Printf("\nMail %d:\n", row)
			fmt.Printf("  %v\n", ds.Words(row, vocab))
			fmt.Printf("───────────────────────────────────────\n")
		}
		return nil
	},
}

func init() {
	examplesCmd.Flags().StringVarP(&examplesData, "data", "d", "", "Data file (default from config)")
	examplesCmd.Flags().StringVar(&examplesClasses, "classes", "", "Class file (default from config)")
	examplesCmd.Flags().StringVar(&examplesVocab, "vocab", "", "Vocabulary file (default from config)")
	examplesCmd.Flags().IntVarP(&examplesCount, "count", "n", 20, "Number of mails to show")
	examplesCmd.Flags().IntVar(&examplesClass, "class", 1, "Class to sample from")
	examplesCmd.Flags().Uint64Var(&examplesSeed, "seed", 0, "Random seed")
}
