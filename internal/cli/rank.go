package cli

import (
	"fmt"
	"strings"

	"resumerank/internal/common"
	"resumerank/internal/errors"
	"resumerank/internal/extract"

	"github.com/spf13/cobra"
)

var rankCmd = &cobra.Command{
	Use:   "rank --job FILE | --job-text TEXT [flags] PATH...",
	Short: "Rank resumes against a job description",
	Long: `Rank one or more resumes against a job description.

PATH may be a resume file or a directory; directories are searched
recursively for supported files (.pdf, .docx, .txt, .md, .html).
Resumes whose text cannot be extracted are still ranked, with a warning.

Examples:
  resumerank rank --job job.txt resumes/
  resumerank rank --job-text "Senior Go engineer, 5+ years" a.pdf b.docx
  resumerank rank --job job.md --format csv -o ranking.csv resumes/`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: validateRankFlags,
	RunE:    runRank,
}

func init() {
	rankCmd.Flags().String("job", "", "Job description file")
	rankCmd.Flags().String("job-text", "", "Job description text")
	rankCmd.Flags().StringP("format", "f", "", "Output format: text, markdown, json or csv (default from config)")
	rankCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
}

// validateRankFlags runs after the root pre-run has loaded configuration.
func validateRankFlags(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = cfg.App.DefaultFormat
		_ = cmd.Flags().Set("format", format)
	}
	if err := common.ValidateOutputFormat(format, cfg.App.SupportedFormats); err != nil {
		return err
	}

	jobFile, _ := cmd.Flags().GetString("job")
	jobText, _ := cmd.Flags().GetString("job-text")
	switch {
	case jobFile == "" && jobText == "":
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"one of --job or --job-text is required", nil)
	case jobFile != "" && jobText != "":
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"--job and --job-text cannot be used together", nil)
	}
	return nil
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	outputFile, _ := cmd.Flags().GetString("output")
	extractor := extract.NewExtractor(cfg.App.MaxFileSize, logger)

	job, err := readJobDescription(cmd, extractor)
	if err != nil {
		return err
	}

	// Every input is read before any scoring starts so that a missing file
	// fails the command without a partial ranking.
	paths, err := extract.CollectPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.NewValidationError(errors.ErrCodeEmptyResumeBatch,
			fmt.Sprintf("no supported resume files found in %s", strings.Join(args, ", ")), nil)
	}
	docs := make([]extract.RawDocument, 0, len(paths))
	for _, path := range paths {
		doc, err := extractor.ExtractFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	p, err := newPipeline(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer p.Close(logger)

	logger.Info("Ranking resumes", "resumes", len(docs), "provider", p.engine.Provider().Name())

	report, err := p.ranker.Rank(ctx, job, docs)
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		logger.Warn("Some resumes could not be ranked", "failures", len(report.Failures))
	}

	handler := common.NewOutputHandler(logger, cmd.OutOrStdout())
	return handler.HandleOutput(report, common.CommandConfig{
		OutputFile:   outputFile,
		OutputFormat: format,
	})
}

// readJobDescription returns the --job-text value or the text extracted
// from --job.
func readJobDescription(cmd *cobra.Command, extractor *extract.Extractor) (string, error) {
	if text, _ := cmd.Flags().GetString("job-text"); text != "" {
		return text, nil
	}
	path, _ := cmd.Flags().GetString("job")
	doc, err := extractor.ExtractFile(path)
	if err != nil {
		return "", err
	}
	if doc.Warning != "" {
		return "", errors.NewValidationError(errors.ErrCodeExtractionFailed,
			fmt.Sprintf("cannot read job description %s: %s", path, doc.Warning), nil)
	}
	return doc.Content, nil
}
