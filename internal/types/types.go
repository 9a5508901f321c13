package types

import "time"

// ResumeInput is one resume supplied inline to a ranking request
type ResumeInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	Content string `json:"content" validate:"max=5242880"`
}

// RankRequest is the body of POST /rank
type RankRequest struct {
	JobDescription string        `json:"jobDescription" validate:"required"`
	Resumes        []ResumeInput `json:"resumes" validate:"required,min=1,dive"`
}

// RankedResult is one successfully scored resume
type RankedResult struct {
	Rank               int      `json:"rank"`
	Name               string   `json:"name"`
	SemanticSimilarity float64  `json:"semanticSimilarity"`
	RawSimilarity      float64  `json:"rawSimilarity"`
	SkillFit           float64  `json:"skillFit"`
	Years              int      `json:"years"`
	YearsOfExperience  float64  `json:"yearsOfExperience"` // years normalized, scaled back to the ceiling
	YearsNormalized    float64  `json:"yearsNormalized"`
	DegreeScore        float64  `json:"degreeScore"`
	FinalScore         float64  `json:"finalScore"`
	MatchedSkills      []string `json:"matchedSkills"`
	Warning            string   `json:"warning,omitempty"`
}

// Failure is a resume that could not be scored
type Failure struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SkillCount is the number of scored resumes that matched a skill
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// Report is the outcome of ranking one batch of resumes against a job description
type Report struct {
	ID                string         `json:"id"`
	GeneratedAt       time.Time      `json:"generatedAt"`
	VocabularyVersion string         `json:"vocabularyVersion"`
	Provider          string         `json:"provider,omitempty"`
	JobSkills         []string       `json:"jobSkills"`
	Results           []RankedResult `json:"results"`
	Failures          []Failure      `json:"failures"`
	SkillFrequency    []SkillCount   `json:"skillFrequency"`
	Duration          time.Duration  `json:"durationNs"`
}

// VocabularyInfo describes the active scoring profile
type VocabularyInfo struct {
	Version           string             `json:"version"`
	Skills            []string           `json:"skills"`
	DegreeTiers       []DegreeTierInfo   `json:"degreeTiers"`
	Weights           map[string]float64 `json:"weights"`
	ExperienceCeiling float64            `json:"experienceCeilingYears"`
}

// DegreeTierInfo is one degree tier of the active profile
type DegreeTierInfo struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Keywords []string `json:"keywords"`
}
