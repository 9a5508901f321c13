package formatters

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"resumerank/internal/types"
)

func sampleReport() *types.Report {
	return &types.Report{
		ID:                "3f2b8c1e-0000-4000-8000-000000000001",
		GeneratedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		VocabularyVersion: "builtin-v1",
		Provider:          "local",
		JobSkills:         []string{"python", "sql"},
		Results: []types.RankedResult{
			{
				Rank:               1,
				Name:               "alice.pdf",
				SemanticSimilarity: 0.812345,
				SkillFit:           1,
				Years:              5,
				YearsOfExperience:  5,
				YearsNormalized:    0.625,
				DegreeScore:        0.8,
				FinalScore:         0.835789,
				MatchedSkills:      []string{"sql", "python", "docker"},
			},
			{
				Rank:               2,
				Name:               "bob, jr.docx",
				SemanticSimilarity: 0.5,
				SkillFit:           0.5,
				Years:              12,
				YearsOfExperience:  8,
				YearsNormalized:    1,
				DegreeScore:        0,
				FinalScore:         0.52,
				MatchedSkills:      []string{"python"},
				Warning:            "could not extract text: zip: not a valid zip file",
			},
		},
		Failures: []types.Failure{
			{Name: "carol.txt", Code: "SIMILARITY_TIMEOUT", Message: "similarity computation timed out"},
		},
		SkillFrequency: []types.SkillCount{
			{Skill: "python", Count: 2},
			{Skill: "docker", Count: 1},
			{Skill: "sql", Count: 1},
		},
	}
}

func TestRow(t *testing.T) {
	got := Row(sampleReport().Results[0])
	want := []string{"1", "alice.pdf", "0.8123", "1.0000", "5.0", "0.800", "0.8358", "docker, python, sql"}

	if len(got) != len(want) {
		t.Fatalf("Row() returned %d cells, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Row()[%d] (%s) = %q, want %q", i, Columns[i], got[i], want[i])
		}
	}
}

func TestRowDoesNotReorderInput(t *testing.T) {
	r := sampleReport().Results[0]
	_ = Row(r)
	if r.MatchedSkills[0] != "sql" {
		t.Errorf("Row() sorted the caller's slice: %v", r.MatchedSkills)
	}
}

func TestCSVFormatter(t *testing.T) {
	out, err := GlobalRegistry.Format(sampleReport(), "csv")
	if err != nil {
		t.Fatalf("Format(csv) error = %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v\n%s", err, out)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header plus 2 rows", len(records))
	}
	if strings.Join(records[0], ",") != "File,Semantic_Similarity,Skill_Fit,Years_of_Experience,Degree_Score,Final_Score,Matched_Skills" {
		t.Errorf("unexpected header %v", records[0])
	}
	if records[1][0] != "alice.pdf" {
		t.Errorf("first row = %v, want alice.pdf first (rank order, no rank column)", records[1])
	}
	if records[2][0] != "bob, jr.docx" {
		t.Errorf("file name with comma not preserved: %q", records[2][0])
	}
	if records[2][3] != "8.0" {
		t.Errorf("Years_of_Experience = %q, want 8.0", records[2][3])
	}
	if strings.Contains(out, "carol.txt") {
		t.Error("CSV output must not contain failures")
	}
}

func TestTextFormatter(t *testing.T) {
	out, err := GlobalRegistry.Format(sampleReport(), "text")
	if err != nil {
		t.Fatalf("Format(text) error = %v", err)
	}

	for _, want := range []string{
		"=== RESUME RANKING ===",
		"Job skills: python, sql",
		"Semantic_Similarity",
		"alice.pdf",
		"0.8358",
		"=== SKILL FREQUENCY ===",
		"python " + strings.Repeat("#", barWidth) + " 2",
		"docker " + strings.Repeat("#", barWidth/2) + " 1",
		"=== WARNINGS ===",
		"bob, jr.docx: could not extract text",
		"=== FAILURES ===",
		"carol.txt [SIMILARITY_TIMEOUT]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q\n%s", want, out)
		}
	}

	if strings.Index(out, "alice.pdf") > strings.Index(out, "bob, jr.docx") {
		t.Error("rows are not in rank order")
	}
}

func TestMarkdownFormatter(t *testing.T) {
	out, err := GlobalRegistry.Format(*sampleReport(), "markdown")
	if err != nil {
		t.Fatalf("Format(markdown) error = %v", err)
	}

	for _, want := range []string{
		"# Resume Ranking",
		"| Rank | File | Semantic_Similarity |",
		"| 1 | alice.pdf | 0.8123 | 1.0000 | 5.0 | 0.800 | 0.8358 | docker, python, sql |",
		"## Skill Frequency",
		"## Failures",
		"**carol.txt** (`SIMILARITY_TIMEOUT`)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q\n%s", want, out)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	out, err := GlobalRegistry.Format(sampleReport(), "json")
	if err != nil {
		t.Fatalf("Format(json) error = %v", err)
	}

	var decoded struct {
		ID       string `json:"id"`
		Results  []map[string]any
		Failures []map[string]any `json:"failures"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.ID != sampleReport().ID {
		t.Errorf("id = %q", decoded.ID)
	}
	if len(decoded.Results) != 2 || len(decoded.Failures) != 1 {
		t.Errorf("got %d results and %d failures", len(decoded.Results), len(decoded.Failures))
	}
}

func TestEmptyReport(t *testing.T) {
	report := &types.Report{ID: "x", VocabularyVersion: "v", Failures: []types.Failure{{Name: "a.txt", Code: "SIMILARITY_FAILED", Message: "boom"}}}

	for _, format := range []string{"text", "markdown"} {
		out, err := GlobalRegistry.Format(report, format)
		if err != nil {
			t.Fatalf("Format(%s) error = %v", format, err)
		}
		if !strings.Contains(out, "No resumes could be ranked.") {
			t.Errorf("%s output missing empty notice\n%s", format, out)
		}
		if !strings.Contains(out, "(none)") {
			t.Errorf("%s output missing empty job skills marker", format)
		}
	}
}

func TestVocabularyFormatters(t *testing.T) {
	info := types.VocabularyInfo{
		Version:           "builtin-v1",
		Skills:            []string{"python", "power bi"},
		DegreeTiers:       []types.DegreeTierInfo{{Name: "doctorate", Score: 1, Keywords: []string{"phd", "ph.d"}}},
		Weights:           map[string]float64{"similarity": 0.55, "skillFit": 0.25, "experience": 0.12, "degree": 0.08},
		ExperienceCeiling: 8,
	}

	text, err := GlobalRegistry.Format(info, "text")
	if err != nil {
		t.Fatalf("Format(text) error = %v", err)
	}
	for _, want := range []string{"Version: builtin-v1", "- power bi", "phd, ph.d", "similarity 0.55", "8.0 years"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output missing %q\n%s", want, text)
		}
	}

	md, err := GlobalRegistry.Format(&info, "markdown")
	if err != nil {
		t.Fatalf("Format(markdown) error = %v", err)
	}
	if !strings.Contains(md, "| doctorate | 1.00 | phd, ph.d |") {
		t.Errorf("markdown output missing tier row\n%s", md)
	}
}

func TestRegistryErrors(t *testing.T) {
	if _, err := GlobalRegistry.Format(sampleReport(), "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := GlobalRegistry.Format("plain string", "csv"); err == nil {
		t.Error("expected error for csv of an unsupported type")
	}
	if _, err := (&ReportTextFormatter{}).Format("nope"); err == nil {
		t.Error("expected type error")
	}
	var nilReport *types.Report
	if _, err := (&ReportCSVFormatter{}).Format(nilReport); err == nil {
		t.Error("expected error for nil report")
	}
}

func TestGetSupportedFormats(t *testing.T) {
	got := NewFormatterRegistry().GetSupportedFormats()
	want := []string{"csv", "json", "markdown", "text"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("GetSupportedFormats() = %v, want %v", got, want)
	}
}

func TestBarChartScaling(t *testing.T) {
	chart := barChart([]types.SkillCount{{Skill: "go", Count: 40}, {Skill: "sql", Count: 1}})
	lines := strings.Split(strings.TrimSpace(chart), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "go  "+strings.Repeat("#", barWidth)+" ") {
		t.Errorf("first bar = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "sql # ") {
		t.Errorf("smallest bar must still be visible: %q", lines[1])
	}
	if barChart(nil) != "" {
		t.Error("empty chart should be empty")
	}
}
