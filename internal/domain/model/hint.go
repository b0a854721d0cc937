package model

import "strings"

type ScopeKind string

const (
	ScopeProblem ScopeKind = "problem"
	ScopeLesson  ScopeKind = "lesson"
)

// Scope confines a hint conversation to one problem or one lesson.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   string    `json:"id"`
}

func (s Scope) IsValid() bool {
	return (s.Kind == ScopeProblem || s.Kind == ScopeLesson) && strings.TrimSpace(s.ID) != ""
}

// Key is exact. IDs that differ only in case or punctuation are different
// scopes.
func (s Scope) Key() string {
	return string(s.Kind) + ":" + s.ID
}

func (s Scope) Same(other Scope) bool {
	return s.Key() == other.Key()
}

type HintKind string

const (
	HintConcept       HintKind = "concept_hint"
	HintErrorAnalysis HintKind = "error_analysis"
	HintFreeQuestion  HintKind = "free_question"
)

type GuardrailDecision string

const (
	DecisionAllowed   GuardrailDecision = "allowed"
	DecisionRewritten GuardrailDecision = "rewritten"
	DecisionBlocked   GuardrailDecision = "blocked"
)

type TurnRole string

const (
	RoleLearner TurnRole = "learner"
	RoleMentor  TurnRole = "mentor"
)

type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

// History is the bounded conversation of one scope. Appending past the bound
// drops the oldest turns.
type History struct {
	scope    Scope
	maxTurns int
	turns    []Turn
}

func NewHistory(scope Scope, maxTurns int, turns ...Turn) *History {
	if maxTurns <= 0 {
		maxTurns = 1
	}
	h := &History{scope: scope, maxTurns: maxTurns}
	h.Append(turns...)
	return h
}

func (h *History) Scope() Scope { return h.scope }

func (h *History) Append(turns ...Turn) {
	h.turns = append(h.turns, turns...)
	if over := len(h.turns) - h.maxTurns; over > 0 {
		h.turns = append([]Turn(nil), h.turns[over:]...)
	}
}

// Turns returns a copy, oldest first.
func (h *History) Turns() []Turn {
	if h == nil {
		return nil
	}
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.turns)
}

// LearnerContext is what the learner has on screen. Both fields are optional.
type LearnerContext struct {
	Code      string   `json:"code,omitempty"`
	Language  Language `json:"language,omitempty"`
	ErrorText string   `json:"error_text,omitempty"`
}

type HintRequest struct {
	Scope    Scope          `json:"scope"`
	Context  LearnerContext `json:"context"`
	Question string         `json:"question"`
	History  *History       `json:"-"`
}

type HintResponse struct {
	Guidance  string            `json:"guidance"`
	FollowUps []string          `json:"follow_ups,omitempty"`
	Kind      HintKind          `json:"kind"`
	Decision  GuardrailDecision `json:"-"` // audit only
	Reason    string            `json:"-"` // audit only
}
