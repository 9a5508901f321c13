package formatters

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"resumerank/internal/types"
)

// Columns of the tabular report, in order.
var Columns = []string{
	"Rank", "File", "Semantic_Similarity", "Skill_Fit",
	"Years_of_Experience", "Degree_Score", "Final_Score", "Matched_Skills",
}

// ExportColumns are the CSV columns. Rank is implied by row order.
var ExportColumns = Columns[1:]

const barWidth = 30

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "Report", &ReportTextFormatter{})
	registry.RegisterFormatter("markdown", "Report", &ReportMarkdownFormatter{})
	registry.RegisterFormatter("csv", "Report", &ReportCSVFormatter{})
	registry.RegisterFormatter("text", "VocabularyInfo", &VocabularyTextFormatter{})
	registry.RegisterFormatter("markdown", "VocabularyInfo", &VocabularyMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.Report, *types.Report:
		return "Report"
	case types.VocabularyInfo, *types.VocabularyInfo:
		return "VocabularyInfo"
	default:
		return "any"
	}
}

func asReport(data any) (*types.Report, error) {
	switch r := data.(type) {
	case *types.Report:
		if r == nil {
			return nil, fmt.Errorf("report is nil")
		}
		return r, nil
	case types.Report:
		return &r, nil
	default:
		return nil, fmt.Errorf("expected Report, got %T", data)
	}
}

func asVocabulary(data any) (*types.VocabularyInfo, error) {
	switch v := data.(type) {
	case *types.VocabularyInfo:
		if v == nil {
			return nil, fmt.Errorf("vocabulary is nil")
		}
		return v, nil
	case types.VocabularyInfo:
		return &v, nil
	default:
		return nil, fmt.Errorf("expected VocabularyInfo, got %T", data)
	}
}

// Row returns the tabular cells of one result: scores to 4 decimal places,
// years to 1 and degree to 3, matched skills sorted and comma separated.
func Row(r types.RankedResult) []string {
	return []string{
		strconv.Itoa(r.Rank),
		r.Name,
		strconv.FormatFloat(r.SemanticSimilarity, 'f', 4, 64),
		strconv.FormatFloat(r.SkillFit, 'f', 4, 64),
		strconv.FormatFloat(r.YearsOfExperience, 'f', 1, 64),
		strconv.FormatFloat(r.DegreeScore, 'f', 3, 64),
		strconv.FormatFloat(r.FinalScore, 'f', 4, 64),
		matchedSkills(r.MatchedSkills),
	}
}

func matchedSkills(skills []string) string {
	sorted := slices.Clone(skills)
	slices.Sort(sorted)
	return strings.Join(sorted, ", ")
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ReportTextFormatter renders an aligned table followed by the skill chart
type ReportTextFormatter struct{}

func (rtf *ReportTextFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== RESUME RANKING ===\n")
	output.WriteString(fmt.Sprintf("Report:     %s\n", report.ID))
	output.WriteString(fmt.Sprintf("Vocabulary: %s\n", report.VocabularyVersion))
	if report.Provider != "" {
		output.WriteString(fmt.Sprintf("Provider:   %s\n", report.Provider))
	}
	output.WriteString(fmt.Sprintf("Job skills: %s\n\n", orNone(strings.Join(report.JobSkills, ", "))))

	if len(report.Results) == 0 {
		output.WriteString("No resumes could be ranked.\n")
	} else {
		tw := tabwriter.NewWriter(&output, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(Columns, "\t"))
		for _, r := range report.Results {
			fmt.Fprintln(tw, strings.Join(Row(r), "\t"))
		}
		if err := tw.Flush(); err != nil {
			return "", err
		}
	}

	if len(report.SkillFrequency) > 0 {
		output.WriteString("\n=== SKILL FREQUENCY ===\n")
		output.WriteString(barChart(report.SkillFrequency))
	}

	if warnings := warningsOf(report.Results); len(warnings) > 0 {
		output.WriteString("\n=== WARNINGS ===\n")
		for _, w := range warnings {
			output.WriteString(fmt.Sprintf("- %s\n", w))
		}
	}

	if len(report.Failures) > 0 {
		output.WriteString("\n=== FAILURES ===\n")
		for _, f := range report.Failures {
			output.WriteString(fmt.Sprintf("- %s [%s]: %s\n", f.Name, f.Code, f.Message))
		}
	}

	return output.String(), nil
}

func (rtf *ReportTextFormatter) SupportedType() string {
	return "Report"
}

// ReportMarkdownFormatter renders a report as a markdown table
type ReportMarkdownFormatter struct{}

func (rmf *ReportMarkdownFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Resume Ranking\n\n")
	output.WriteString(fmt.Sprintf("**Report:** `%s`  \n", report.ID))
	output.WriteString(fmt.Sprintf("**Vocabulary:** %s  \n", report.VocabularyVersion))
	if report.Provider != "" {
		output.WriteString(fmt.Sprintf("**Provider:** %s  \n", report.Provider))
	}
	output.WriteString(fmt.Sprintf("**Job skills:** %s\n\n", orNone(strings.Join(report.JobSkills, ", "))))

	output.WriteString("## Results\n\n")
	if len(report.Results) == 0 {
		output.WriteString("No resumes could be ranked.\n")
	} else {
		output.WriteString("| " + strings.Join(Columns, " | ") + " |\n")
		output.WriteString("|" + strings.Repeat("---|", len(Columns)) + "\n")
		for _, r := range report.Results {
			cells := Row(r)
			for i, c := range cells {
				cells[i] = strings.ReplaceAll(c, "|", `\|`)
			}
			output.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
	}

	if len(report.SkillFrequency) > 0 {
		output.WriteString("\n## Skill Frequency\n\n```\n")
		output.WriteString(barChart(report.SkillFrequency))
		output.WriteString("```\n")
	}

	if warnings := warningsOf(report.Results); len(warnings) > 0 {
		output.WriteString("\n## Warnings\n\n")
		for _, w := range warnings {
			output.WriteString(fmt.Sprintf("- %s\n", w))
		}
	}

	if len(report.Failures) > 0 {
		output.WriteString("\n## Failures\n\n")
		for _, f := range report.Failures {
			output.WriteString(fmt.Sprintf("- **%s** (`%s`): %s\n", f.Name, f.Code, f.Message))
		}
	}

	return output.String(), nil
}

func (rmf *ReportMarkdownFormatter) SupportedType() string {
	return "Report"
}

// ReportCSVFormatter writes only the ranked rows, one per resume
type ReportCSVFormatter struct{}

func (rcf *ReportCSVFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ExportColumns); err != nil {
		return "", err
	}
	for _, r := range report.Results {
		if err := w.Write(Row(r)[1:]); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (rcf *ReportCSVFormatter) SupportedType() string {
	return "Report"
}

// VocabularyTextFormatter prints the active scoring profile
type VocabularyTextFormatter struct{}

func (vtf *VocabularyTextFormatter) Format(data any) (string, error) {
	info, err := asVocabulary(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== SCORING PROFILE ===\n")
	output.WriteString(fmt.Sprintf("Version: %s\n\n", info.Version))

	output.WriteString(fmt.Sprintf("Skills (%d):\n", len(info.Skills)))
	for _, s := range info.Skills {
		output.WriteString(fmt.Sprintf("  - %s\n", s))
	}

	output.WriteString("\nDegree tiers (first match wins):\n")
	for _, t := range info.DegreeTiers {
		output.WriteString(fmt.Sprintf("  %-10s %.2f  %s\n", t.Name, t.Score, strings.Join(t.Keywords, ", ")))
	}

	output.WriteString("\nWeights:\n")
	for _, name := range weightOrder {
		output.WriteString(fmt.Sprintf("  %-10s %.2f\n", name, info.Weights[name]))
	}
	output.WriteString(fmt.Sprintf("\nExperience ceiling: %.1f years\n", info.ExperienceCeiling))

	return output.String(), nil
}

func (vtf *VocabularyTextFormatter) SupportedType() string {
	return "VocabularyInfo"
}

// VocabularyMarkdownFormatter prints the active scoring profile as markdown
type VocabularyMarkdownFormatter struct{}

func (vmf *VocabularyMarkdownFormatter) Format(data any) (string, error) {
	info, err := asVocabulary(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Scoring Profile\n\n")
	output.WriteString(fmt.Sprintf("**Version:** %s\n\n", info.Version))

	output.WriteString("## Skills\n\n")
	for _, s := range info.Skills {
		output.WriteString(fmt.Sprintf("- %s\n", s))
	}

	output.WriteString("\n## Degree Tiers\n\n| Tier | Score | Keywords |\n|---|---|---|\n")
	for _, t := range info.DegreeTiers {
		output.WriteString(fmt.Sprintf("| %s | %.2f | %s |\n", t.Name, t.Score, strings.Join(t.Keywords, ", ")))
	}

	output.WriteString("\n## Weights\n\n")
	for _, name := range weightOrder {
		output.WriteString(fmt.Sprintf("- **%s:** %.2f\n", name, info.Weights[name]))
	}
	output.WriteString(fmt.Sprintf("\n**Experience ceiling:** %.1f years\n", info.ExperienceCeiling))

	return output.String(), nil
}

func (vmf *VocabularyMarkdownFormatter) SupportedType() string {
	return "VocabularyInfo"
}

var weightOrder = []string{"similarity", "skillFit", "experience", "degree"}

// barChart draws one bar per skill scaled to the most frequent one.
func barChart(freq []types.SkillCount) string {
	maxCount, width := 0, 0
	for _, f := range freq {
		maxCount = max(maxCount, f.Count)
		width = max(width, len(f.Skill))
	}
	if maxCount == 0 {
		return ""
	}

	var output strings.Builder
	for _, f := range freq {
		n := max(1, (f.Count*barWidth+maxCount/2)/maxCount)
		output.WriteString(fmt.Sprintf("%-*s %s %d\n", width, f.Skill, strings.Repeat("#", n), f.Count))
	}
	return output.String()
}

func warningsOf(results []types.RankedResult) []string {
	var warnings []string
	for _, r := range results {
		if r.Warning != "" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", r.Name, r.Warning))
		}
	}
	return warnings
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
