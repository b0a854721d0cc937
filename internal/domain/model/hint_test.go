package model

import "testing"

func TestHistoryDropsOldestTurns(t *testing.T) {
	t.Parallel()
	scope := Scope{Kind: ScopeProblem, ID: "two-sum"}
	h := NewHistory(scope, 3)
	for _, c := range []string{"a", "b", "c", "d"} {
		h.Append(Turn{Role: RoleLearner, Content: c})
	}
	turns := h.Turns()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "b" || turns[2].Content != "d" {
		t.Fatalf("expected oldest turn dropped, got %+v", turns)
	}

	turns[0].Content = "changed"
	if h.Turns()[0].Content != "b" {
		t.Fatalf("Turns must return a copy")
	}
}

func TestScopeKeyIsExact(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		a, b     Scope
		wantSame bool
	}{
		{name: "identical", a: Scope{Kind: ScopeProblem, ID: "two-sum"}, b: Scope{Kind: ScopeProblem, ID: "two-sum"}, wantSame: true},
		{name: "case differs", a: Scope{Kind: ScopeProblem, ID: "P1"}, b: Scope{Kind: ScopeProblem, ID: "p1"}},
		{name: "punctuation differs", a: Scope{Kind: ScopeProblem, ID: "two.sum"}, b: Scope{Kind: ScopeProblem, ID: "two-sum"}},
		{name: "kind differs", a: Scope{Kind: ScopeProblem, ID: "two-sum"}, b: Scope{Kind: ScopeLesson, ID: "two-sum"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.a.Same(tt.b); got != tt.wantSame {
				t.Fatalf("expected same=%v for %q and %q, got %v", tt.wantSame, tt.a.Key(), tt.b.Key(), got)
			}
		})
	}
}

func TestScopeIsValid(t *testing.T) {
	t.Parallel()
	if (Scope{Kind: "course", ID: "x"}).IsValid() {
		t.Fatalf("unknown kind should be invalid")
	}
	if (Scope{Kind: ScopeLesson, ID: "  "}).IsValid() {
		t.Fatalf("blank id should be invalid")
	}
	if !(Scope{Kind: ScopeLesson, ID: "loops-101"}).IsValid() {
		t.Fatalf("expected valid scope")
	}
}
