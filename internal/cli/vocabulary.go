package cli

import (
	"resumerank/internal/common"
	"resumerank/internal/errors"
	"resumerank/internal/ranking"
	"resumerank/internal/scoring"

	"github.com/spf13/cobra"
)

var vocabularyCmd = &cobra.Command{
	Use:   "vocabulary",
	Short: "Show the active scoring profile",
	Long: `Print the skill vocabulary, degree tiers, weights and experience ceiling
used for scoring. Pass --profile to inspect a profile file instead of the
built-in one.`,
	Args: cobra.NoArgs,
	RunE: runVocabulary,
}

func init() {
	vocabularyCmd.Flags().StringP("format", "f", "text", "Output format: text, markdown or json")
	vocabularyCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
}

func runVocabulary(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	profile, err := scoring.ProfileFromConfig(cfg.Scoring)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidProfile, "failed to load scoring profile", err)
	}

	format, _ := cmd.Flags().GetString("format")
	outputFile, _ := cmd.Flags().GetString("output")
	return common.NewOutputHandler(logger, cmd.OutOrStdout()).HandleOutput(
		ranking.DescribeProfile(profile),
		common.CommandConfig{OutputFile: outputFile, OutputFormat: format},
	)
}
