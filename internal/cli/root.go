package cli

import (
	"context"
	"fmt"

	"resumerank/internal/config"
	"resumerank/internal/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "resumerank",
	Short: "Rank resumes against a job description",
	Long: `Resumerank scores a batch of resumes against one job description and
orders them by a weighted blend of semantic similarity, skill overlap,
years of experience and education level.

Resumes may be PDF, DOCX, plain text, Markdown or HTML files. Results can be
printed as a table, Markdown, JSON or CSV, or served over HTTP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfigAndLogger,
}

// Execute runs the command line with ctx as the root context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfigAndLogger loads configuration once flags are parsed and attaches
// it, with a logger, to the command context.
func loadConfigAndLogger(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Debug("Starting resumerank",
		"version", Version,
		"command", cmd.Name(),
		"log_level", cfg.App.LogLevel,
		"similarity_provider", cfg.Similarity.Provider)

	ctx := context.WithValue(cmd.Context(), configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	cmd.SetContext(ctx)
	return nil
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("config not found in context")
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger, nil
	}
	return nil, fmt.Errorf("logger not found in context")
}

// bindFlag binds a flag to a viper config key
func bindFlag(cmd *cobra.Command, key, flagName string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	if err := viper.BindPFlag(key, flags.Lookup(flagName)); err != nil {
		panic(err)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: /etc/resumerank, $HOME/.resumerank or ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().String("profile", "", "Scoring profile YAML replacing the built-in vocabulary (overrides config)")
	bindFlag(rootCmd, "config", "config", true)
	bindFlag(rootCmd, "app.logLevel", "log-level", true)
	bindFlag(rootCmd, "scoring.profileFile", "profile", true)

	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(vocabularyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
