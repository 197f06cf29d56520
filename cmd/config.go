package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IA-UNISON-2015a/tarea07-Naive-Bayes/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Generate and manage nbayes configuration files`,
}

var configGenCmd = &cobra.Command{
	Use:   "generate [config-file]",
	Short: "Generate default configuration file",
	Long:  `Generate a default configuration file with all options`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := "config.yaml"
		if len(args) > 0 {
			configPath = args[0]
		}

		// Check if file already exists
		if _, err := os.Stat(configPath); err == nil {
			overwrite, _ := cmd.Flags().GetBool("force")
			if !overwrite {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
			}
		}

		if err := config.DefaultConfig().SaveConfig(configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("✅ Configuration file generated: %s\n", configPath)
		fmt.Printf("📝 Edit the file to point at your data and tune learning\n")
		fmt.Printf("🚀 Use 'nbayes evaluate --config %s' to use the configuration\n", configPath)

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long:  `Validate a configuration file for syntax and logical errors`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := args[0]

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("❌ Configuration validation failed: %w", err)
		}

		warnings := validateConfigLogic(cfg)

		fmt.Printf("✅ Configuration is valid: %s\n", configPath)

		if len(warnings) > 0 {
			fmt.Printf("\n⚠️  Warnings:\n")
			for _, warning := range warnings {
				fmt.Printf("  - %s\n", warning)
			}
		}

		fmt.Printf("\n📊 Configuration Summary:\n")
		fmt.Printf("  Unknown values: %s\n", cfg.Learning.UnknownValues)
		fmt.Printf("  Missing value: %d\n", cfg.Learning.MissingValue)
		fmt.Printf("  Redis mirror: %v\n", cfg.Redis.Enabled)
		fmt.Printf("  Metrics textfile: %v\n", cfg.Metrics.Enabled)

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [config-file]",
	Short: "Show current configuration",
	Long:  `Display the current configuration with all values`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg *config.Config
		var err error

		if len(args) > 0 {
			cfg, err = config.LoadConfig(args[0])
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Printf("Configuration: %s\n\n", args[0])
		} else {
			cfg = config.DefaultConfig()
			fmt.Printf("Default Configuration:\n\n")
		}

		fmt.Printf("📁 Data:\n")
		fmt.Printf("  Training: %s / %s\n", cfg.Data.TrainData, cfg.Data.TrainClasses)
		fmt.Printf("  Test: %s / %s\n", cfg.Data.TestData, cfg.Data.TestClasses)
		fmt.Printf("  Vocabulary: %s\n", cfg.Data.Vocabulary)

		fmt.Printf("\n🧠 Learning:\n")
		fmt.Printf("  Unknown values: %s\n", cfg.Learning.UnknownValues)
		fmt.Printf("  Missing value: %d\n", cfg.Learning.MissingValue)
		if cfg.Learning.BatchSize > 0 {
			fmt.Printf("  Batch size: %d\n", cfg.Learning.BatchSize)
		} else {
			fmt.Printf("  Batch size: whole dataset\n")
		}
		if len(cfg.Learning.Domain) > 0 {
			fmt.Printf("  Domain: %v\n", cfg.Learning.Domain)
		} else {
			fmt.Printf("  Domain: inferred\n")
		}
		if len(cfg.Learning.Classes) > 0 {
			fmt.Printf("  Classes: %v\n", cfg.Learning.Classes)
		} else {
			fmt.Printf("  Classes: inferred\n")
		}

		fmt.Printf("\n📡 Redis mirror:\n")
		fmt.Printf("  Enabled: %v\n", cfg.Redis.Enabled)
		fmt.Printf("  URL: %s (db %d)\n", cfg.Redis.RedisURL, cfg.Redis.DatabaseNum)
		fmt.Printf("  Prefix: %s\n", cfg.Redis.KeyPrefix)
		fmt.Printf("  Key TTL: %s\n", cfg.Redis.KeyTTL)

		fmt.Printf("\n📝 Logging:\n")
		fmt.Printf("  Level: %s\n", cfg.Logging.Level)
		fmt.Printf("  Format: %s\n", cfg.Logging.Format)
		if cfg.Logging.File != "" {
			fmt.Printf("  File: %s\n", cfg.Logging.File)
		}

		fmt.Printf("\n📈 Metrics:\n")
		fmt.Printf("  Enabled: %v\n", cfg.Metrics.Enabled)
		fmt.Printf("  Textfile: %s\n", cfg.Metrics.Textfile)
		fmt.Printf("  Namespace: %s\n", cfg.Metrics.Namespace)

		return nil
	},
}

// validateConfigLogic performs additional logical validation
func validateConfigLogic(cfg *config.Config) []string {
	var warnings []string

	if len(cfg.Learning.Domain) == 1 {
		warnings = append(warnings, "Domain has a single value - every attribute is constant")
	}

	if len(cfg.Learning.Classes) == 1 {
		warnings = append(warnings, "Only one class configured - every mail gets the same label")
	}

	if cfg.Learning.BatchSize > 0 && len(cfg.Learning.Domain) == 0 {
		warnings = append(warnings, "Batched learning without an explicit domain - domains come from the first training set")
	}

	if cfg.Redis.Enabled && cfg.Redis.KeyTTL == "" {
		warnings = append(warnings, "Redis keys never expire")
	}

	if cfg.Logging.Level == "debug" {
		warnings = append(warnings, "Debug logging is verbose on large datasets")
	}

	return warnings
}

func init() {
	configCmd.AddCommand(configGenCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configGenCmd.Flags().Bool("force", false, "Overwrite existing config file")
}
