package model

import (
	"slices"
	"time"
)

type Difficulty string
type Track string
type ProblemStatus string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"

	TrackJavaDSA     Track = "java_dsa"
	TrackDataScience Track = "data_science"
	TrackAIEngineer  Track = "ai_engineer"

	StatusDraft     ProblemStatus = "draft"
	StatusPublished ProblemStatus = "published"
)

// Problem is immutable once published.
type Problem struct {
	ID                 string              `json:"id"`
	Slug               string              `json:"slug"`
	Title              string              `json:"title"`
	Track              Track               `json:"track"`
	Difficulty         Difficulty          `json:"difficulty"`
	Statement          string              `json:"statement"`
	Status             ProblemStatus       `json:"status"`
	LessonID           *string             `json:"lesson_id,omitempty"`
	StarterCode        map[Language]string `json:"starter_code,omitempty"`
	AllowedLanguages   []Language          `json:"allowed_languages"`
	LearningObjectives []string            `json:"learning_objectives,omitempty"`
	LenientComparison  bool                `json:"lenient_comparison"`
	TimeLimitMs        int                 `json:"time_limit_ms"`
	TestCases          []TestCase          `json:"-"` // Declared order; never sent to clients as-is
	CreatedAt          time.Time           `json:"created_at"`
}

type TestCase struct {
	ID             string `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
	SortOrder      int    `json:"sort_order"`
}

func (p *Problem) AllowsLanguage(lang Language) bool {
	return slices.Contains(p.AllowedLanguages, lang)
}

// CasesFor returns the cases a mode evaluates, keeping declared order.
// The index of each case within the full list is returned alongside it.
func (p *Problem) CasesFor(mode Mode) ([]TestCase, []int) {
	cases := make([]TestCase, 0, len(p.TestCases))
	indexes := make([]int, 0, len(p.TestCases))
	for i, tc := range p.TestCases {
		if mode == ModeRun && tc.IsHidden {
			continue
		}
		cases = append(cases, tc)
		indexes = append(indexes, i)
	}
	return cases, indexes
}
