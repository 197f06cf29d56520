package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "nbayes",
	Short: "nbayes - Naive Bayes mail classifier",
	Long: `nbayes trains a frequency-table Naive Bayes classifier with Laplace smoothing
on word-presence vectors and uses it to tell spam from regular mail.

Training is incremental and queries may leave values unknown.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("nbayes - Naive Bayes mail classifier")
		fmt.Println("Use 'nbayes --help' for usage information")
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(examplesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(benchmarkCmd)
	rootCmd.AddCommand(configCmd)
}
