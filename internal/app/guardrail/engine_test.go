package guardrail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/llm"
)

type scriptedReply struct {
	text  string
	err   error
	block bool
}

// scriptedModel returns its replies in order and records every conversation.
type scriptedModel struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   [][]llm.Message
}

func (m *scriptedModel) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]llm.Message(nil), messages...))
	if len(m.replies) == 0 {
		m.mu.Unlock()
		return "", errors.New("no scripted reply left")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	m.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

const fullSolution = "Here:\n\n```python\ndef add(a, b):\n    return a + b\n```"

var problemScope = ScopeContext{
	Scope:     model.Scope{Kind: model.ScopeProblem, ID: "p-add"},
	Title:     "Add Two Numbers",
	Statement: "Read two integers and print their sum.",
}

func TestEngineDecisions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		replies      []scriptedReply
		wantDecision model.GuardrailDecision
		wantReason   string
		wantGuidance string
		wantCalls    int
	}{
		{
			name:         "first draft allowed",
			replies:      []scriptedReply{{text: "Think about what input() gives you.\nWhat type does it return?"}},
			wantDecision: model.DecisionAllowed,
			wantGuidance: "Think about what input() gives you.\nWhat type does it return?",
			wantCalls:    1,
		},
		{
			name:         "rewritten after re-prompt",
			replies:      []scriptedReply{{text: fullSolution}, {text: "Which operator combines two numbers?"}},
			wantDecision: model.DecisionRewritten,
			wantReason:   RuleCompleteFunction,
			wantGuidance: "Which operator combines two numbers?",
			wantCalls:    2,
		},
		{
			name:         "blocked after two violations",
			replies:      []scriptedReply{{text: fullSolution}, {text: fullSolution}},
			wantDecision: model.DecisionBlocked,
			wantReason:   RuleCompleteFunction,
			wantGuidance: fallbacks[model.HintConcept].guidance,
			wantCalls:    2,
		},
		{
			name:         "model error",
			replies:      []scriptedReply{{err: errors.New("bad gateway")}},
			wantDecision: model.DecisionBlocked,
			wantReason:   ReasonModelError,
			wantGuidance: fallbacks[model.HintConcept].guidance,
			wantCalls:    1,
		},
		{
			name:         "model error on re-prompt",
			replies:      []scriptedReply{{text: fullSolution}, {err: errors.New("bad gateway")}},
			wantDecision: model.DecisionBlocked,
			wantReason:   ReasonModelError,
			wantGuidance: fallbacks[model.HintConcept].guidance,
			wantCalls:    2,
		},
		{
			name:         "model timeout",
			replies:      []scriptedReply{{block: true}},
			wantDecision: model.DecisionBlocked,
			wantReason:   ReasonModelTimeout,
			wantGuidance: fallbacks[model.HintConcept].guidance,
			wantCalls:    1,
		},
		{
			name:         "empty reply",
			replies:      []scriptedReply{{text: "  \n "}},
			wantDecision: model.DecisionBlocked,
			wantReason:   ReasonEmptyResponse,
			wantGuidance: fallbacks[model.HintConcept].guidance,
			wantCalls:    1,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := &scriptedModel{replies: tt.replies}
			e := NewEngine(m, Config{MaxCodeLines: 8, HistoryTurns: 10, Timeout: 50 * time.Millisecond})

			resp := e.RequestHint(context.Background(), model.HintRequest{Scope: problemScope.Scope}, problemScope)
			if resp.Decision != tt.wantDecision {
				t.Fatalf("expected decision %s, got %s", tt.wantDecision, resp.Decision)
			}
			if resp.Reason != tt.wantReason {
				t.Fatalf("expected reason %q, got %q", tt.wantReason, resp.Reason)
			}
			if resp.Guidance != tt.wantGuidance {
				t.Fatalf("expected guidance %q, got %q", tt.wantGuidance, resp.Guidance)
			}
			if resp.Kind != model.HintConcept {
				t.Fatalf("expected concept hint, got %s", resp.Kind)
			}
			if len(m.calls) != tt.wantCalls {
				t.Fatalf("expected %d model calls, got %d", tt.wantCalls, len(m.calls))
			}
		})
	}
}

func TestEngineRepromptCarriesRejectedDraft(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{replies: []scriptedReply{{text: fullSolution}, {text: "What does + do with two ints?"}}}
	e := NewEngine(m, Config{MaxCodeLines: 8})

	resp := e.RequestHint(context.Background(), model.HintRequest{Scope: problemScope.Scope}, problemScope)
	if resp.Decision != model.DecisionRewritten {
		t.Fatalf("expected rewritten, got %s", resp.Decision)
	}
	if len(resp.FollowUps) != 1 || resp.FollowUps[0] != "What does + do with two ints?" {
		t.Fatalf("unexpected follow-ups %v", resp.FollowUps)
	}

	retry := m.calls[1]
	if len(retry) != len(m.calls[0])+2 {
		t.Fatalf("expected re-prompt to extend the first conversation by 2, got %d vs %d", len(retry), len(m.calls[0]))
	}
	draft, instr := retry[len(retry)-2], retry[len(retry)-1]
	if draft.Role != llm.RoleAssistant || draft.Content != fullSolution {
		t.Fatalf("expected rejected draft as assistant turn, got %+v", draft)
	}
	if instr.Role != llm.RoleUser || instr.Content != RepromptInstruction {
		t.Fatalf("expected re-prompt instruction last, got %+v", instr)
	}
}

func TestEngineDiscardsHistoryFromAnotherScope(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{replies: []scriptedReply{{text: "What is a loop for?"}}}
	e := NewEngine(m, Config{MaxCodeLines: 8})

	other := model.NewHistory(model.Scope{Kind: model.ScopeLesson, ID: "loops-101"}, 10,
		model.Turn{Role: model.RoleLearner, Content: "what is range?"},
		model.Turn{Role: model.RoleMentor, Content: "It yields numbers."},
	)
	e.RequestHint(context.Background(), model.HintRequest{Scope: problemScope.Scope, History: other}, problemScope)

	for _, msg := range m.calls[0] {
		if msg.Content == "what is range?" || msg.Content == "It yields numbers." {
			t.Fatalf("history from another scope leaked into the prompt")
		}
	}
	if len(m.calls[0]) != 4 {
		t.Fatalf("expected 4 messages without history, got %d", len(m.calls[0]))
	}
}

func TestEngineKeepsMostRecentHistory(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{replies: []scriptedReply{{text: "Keep going. What is the next step?"}}}
	e := NewEngine(m, Config{MaxCodeLines: 8, HistoryTurns: 2})

	h := model.NewHistory(problemScope.Scope, 10,
		model.Turn{Role: model.RoleLearner, Content: "q1"},
		model.Turn{Role: model.RoleMentor, Content: "a1"},
		model.Turn{Role: model.RoleLearner, Content: "q2"},
		model.Turn{Role: model.RoleMentor, Content: "a2"},
	)
	e.RequestHint(context.Background(), model.HintRequest{Scope: problemScope.Scope, History: h}, problemScope)

	msgs := m.calls[0]
	if len(msgs) != 6 {
		t.Fatalf("expected 2 history turns in 6 messages, got %d", len(msgs))
	}
	if msgs[2].Content != "q2" || msgs[3].Content != "a2" {
		t.Fatalf("expected most recent turns, got %q and %q", msgs[2].Content, msgs[3].Content)
	}
}

func TestFallbackPerKind(t *testing.T) {
	t.Parallel()
	for _, kind := range []model.HintKind{model.HintConcept, model.HintErrorAnalysis, model.HintFreeQuestion} {
		resp := Fallback(kind, "x")
		if resp.Kind != kind || resp.Decision != model.DecisionBlocked || resp.Guidance == "" {
			t.Fatalf("unexpected fallback for %s: %+v", kind, resp)
		}
		if v := NewFilter(8).Check(resp.Guidance, ScopeContext{}); v != nil {
			t.Fatalf("fallback for %s must pass the filter, got %v", kind, v)
		}
	}
}

func TestEngineScenarios(t *testing.T) {
	t.Parallel()
	corrected := "Fixed version:\n\n```python\ndef find_max(nums):\n    best = nums[0]\n    for n in nums:\n        if n > best:\n            best = n\n    return best\n```"
	tests := []struct {
		name         string
		req          model.HintRequest
		replies      []scriptedReply
		wantKind     model.HintKind
		wantDecision model.GuardrailDecision
	}{
		{
			name:         "concept question answered with a nudge",
			req:          model.HintRequest{Question: "how do I find the max?"},
			replies:      []scriptedReply{{text: "Imagine reading the numbers one by one. What would you need to remember as you go?"}},
			wantKind:     model.HintConcept,
			wantDecision: model.DecisionAllowed,
		},
		{
			name:         "one-line solution behind a spread operator",
			req:          model.HintRequest{Question: "how do I find the max?"},
			replies:      []scriptedReply{{text: "function findMax(nums){ return Math.max(...nums); }"}, {text: "function findMax(nums){ return Math.max(...nums); }"}},
			wantKind:     model.HintConcept,
			wantDecision: model.DecisionBlocked,
		},
		{
			name: "error analysis that keeps handing out the fix",
			req: model.HintRequest{
				Question: "why does this crash?",
				Context:  model.LearnerContext{Code: "def find_max(nums):\n    return nums[len(nums)]", ErrorText: "IndexError: list index out of range"},
			},
			replies:      []scriptedReply{{text: corrected}, {text: corrected}},
			wantKind:     model.HintErrorAnalysis,
			wantDecision: model.DecisionBlocked,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := &scriptedModel{replies: tt.replies}
			e := NewEngine(m, Config{MaxCodeLines: 8})
			tt.req.Scope = problemScope.Scope

			resp := e.RequestHint(context.Background(), tt.req, problemScope)
			if resp.Kind != tt.wantKind || resp.Decision != tt.wantDecision {
				t.Fatalf("expected %s/%s, got %s/%s", tt.wantKind, tt.wantDecision, resp.Kind, resp.Decision)
			}
			if NewFilter(8).Check(resp.Guidance, problemScope) != nil {
				t.Fatalf("released guidance must pass the filter")
			}
		})
	}
}

func TestEngineIgnoresEmptyHistory(t *testing.T) {
	t.Parallel()
	m := &scriptedModel{replies: []scriptedReply{{text: "What does input() return?"}}}
	e := NewEngine(m, Config{MaxCodeLines: 8})

	empty := model.NewHistory(model.Scope{Kind: model.ScopeLesson, ID: "loops-101"}, 10)
	resp := e.RequestHint(context.Background(), model.HintRequest{Scope: problemScope.Scope, History: empty}, problemScope)
	if resp.Decision != model.DecisionAllowed {
		t.Fatalf("expected allowed, got %s", resp.Decision)
	}
	if len(m.calls[0]) != 4 {
		t.Fatalf("expected 4 messages with empty history, got %d", len(m.calls[0]))
	}
}
