package guardrail

import "practice_mentor/internal/domain/model"

type cannedHint struct {
	guidance  string
	followUps []string
}

var fallbacks = map[model.HintKind]cannedHint{
	model.HintConcept: {
		guidance: "Let's take it one step at a time. Re-read the problem and write down, in your own words, " +
			"what the input is and what the output must be. Then work through the smallest example by hand " +
			"and note every step you take. Those steps are the outline of your program.",
		followUps: []string{
			"What should your program print for the smallest possible input?",
			"Which step of your manual walkthrough is hardest to express in code?",
		},
	},
	model.HintErrorAnalysis: {
		guidance: "Start from the last line of the error message: it names the kind of error and usually " +
			"the line where it happened. Look at that line and check what values the variables hold right " +
			"before it runs. Printing them, or tracing them by hand with a small input, often reveals the cause.",
		followUps: []string{
			"Which line does the error point to?",
			"What value did you expect a variable to have on that line, and what does it actually hold?",
		},
	},
	model.HintFreeQuestion: {
		guidance: "Good question. Try connecting it to the learning objectives of this topic and look for a " +
			"small example you can test yourself. If you share what you already tried, I can point you at the " +
			"next idea to explore.",
		followUps: []string{
			"What have you tried so far?",
		},
	},
}

// Fallback is the safe answer used when no model reply can be released.
func Fallback(kind model.HintKind, reason string) *model.HintResponse {
	c, ok := fallbacks[kind]
	if !ok {
		c = fallbacks[model.HintFreeQuestion]
	}
	return &model.HintResponse{
		Guidance:  c.guidance,
		FollowUps: append([]string(nil), c.followUps...),
		Kind:      kind,
		Decision:  model.DecisionBlocked,
		Reason:    reason,
	}
}
