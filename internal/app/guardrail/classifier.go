// Package guardrail turns a learner's question into mentor guidance that never
// hands over a finished solution.
package guardrail

import (
	"regexp"
	"strings"

	"practice_mentor/internal/domain/model"
)

var (
	errorMarkers = regexp.MustCompile(`(?i)(traceback \(most recent call last\)|\bexception\b|(?-i:[A-Z]\w*(Error|Exception)\b)|\berror:|\berror\b|segmentation fault|stack ?trace|panic:|undefined reference|cannot find symbol|compil(e|ation) (error|failed)|exit code [1-9])`)

	hintSeeking = regexp.MustCompile(`(?i)(^\s*how (do|can|should|would) i\b|where (do|should) i (start|begin)|what should i do|what('s| is) the (approach|idea|trick)|which approach|\bhints?\b|\bstuck\b|\bnudge\b|\bnext step\b|give me a clue)`)
)

// Classify picks the hint kind. Error text or error markers in the question
// win; an empty or hint-seeking question is a concept hint; anything else is
// a free question.
func Classify(req model.HintRequest) model.HintKind {
	question := strings.TrimSpace(req.Question)
	switch {
	case strings.TrimSpace(req.Context.ErrorText) != "":
		return model.HintErrorAnalysis
	case question != "" && errorMarkers.MatchString(question):
		return model.HintErrorAnalysis
	case question == "" || hintSeeking.MatchString(question):
		return model.HintConcept
	default:
		return model.HintFreeQuestion
	}
}
