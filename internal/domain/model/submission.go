package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeRun    Mode = "run"    // sample cases only
	ModeSubmit Mode = "submit" // all cases including hidden
)

func (m Mode) IsValid() bool {
	return m == ModeRun || m == ModeSubmit
}

type SubmissionState string

const (
	SubmissionPending   SubmissionState = "pending"
	SubmissionEvaluated SubmissionState = "evaluated"
)

type OutcomeStatus string

const (
	OutcomeAccepted     OutcomeStatus = "accepted"
	OutcomeWrongAnswer  OutcomeStatus = "wrong_answer"
	OutcomeRuntimeError OutcomeStatus = "runtime_error"
	OutcomeTimeout      OutcomeStatus = "timeout"
	OutcomePartial      OutcomeStatus = "partial"
)

// Signal is what the sandbox run told us about a single case.
type Signal string

const (
	SignalOK           Signal = "ok"
	SignalMismatch     Signal = "mismatch"
	SignalRuntimeError Signal = "runtime_error"
	SignalTimeout      Signal = "timeout"
)

// Submission is a write-once audit record: created pending, completed once.
type Submission struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	ProblemID    string          `json:"problem_id"`
	Source       string          `json:"source"`
	SourceDigest string          `json:"source_digest"`
	Language     Language        `json:"language"`
	Mode         Mode            `json:"mode"`
	State        SubmissionState `json:"state"`
	CreatedAt    time.Time       `json:"created_at"`
	EvaluatedAt  *time.Time      `json:"evaluated_at,omitempty"`
	Outcome      *Outcome        `json:"outcome,omitempty"`
}

type Verdict struct {
	CaseIndex       int    `json:"case_index"`
	Hidden          bool   `json:"hidden"`
	ExpectedOutput  string `json:"expected_output"`
	ActualOutput    string `json:"actual_output"`
	Matched         bool   `json:"matched"`
	Signal          Signal `json:"signal"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	Error           string `json:"error,omitempty"`
}

type Outcome struct {
	Verdicts []Verdict       `json:"verdicts"`
	Passed   int             `json:"passed"`
	Total    int             `json:"total"`
	Score    decimal.Decimal `json:"score"` // percentage of Total, two decimals
	Status   OutcomeStatus   `json:"status"`
}

// NewOutcome aggregates verdicts. total is the number of selected cases, which
// can exceed len(verdicts) when a run stopped early.
func NewOutcome(verdicts []Verdict, total int) *Outcome {
	o := &Outcome{Verdicts: verdicts, Total: total}
	for _, v := range verdicts {
		if v.Matched {
			o.Passed++
		}
	}
	o.Score = ScorePercent(o.Passed, total)
	o.Status = DeriveStatus(verdicts, total)
	return o
}

// DeriveStatus applies timeout > runtime_error > accepted > partial > wrong_answer.
func DeriveStatus(verdicts []Verdict, total int) OutcomeStatus {
	passed := 0
	timedOut, crashed := false, false
	for _, v := range verdicts {
		switch {
		case v.Matched:
			passed++
		case v.Signal == SignalTimeout:
			timedOut = true
		case v.Signal == SignalRuntimeError:
			crashed = true
		}
	}
	switch {
	case timedOut:
		return OutcomeTimeout
	case crashed:
		return OutcomeRuntimeError
	case total > 0 && passed == total:
		return OutcomeAccepted
	case passed > 0:
		return OutcomePartial
	default:
		return OutcomeWrongAnswer
	}
}

func ScorePercent(passed, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(passed)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2)
}

// Redacted returns a copy safe to show the learner: hidden cases keep their
// verdict but lose expected and actual output.
func (o *Outcome) Redacted() *Outcome {
	if o == nil {
		return nil
	}
	out := *o
	out.Verdicts = make([]Verdict, len(o.Verdicts))
	for i, v := range o.Verdicts {
		if v.Hidden {
			v.ExpectedOutput = ""
			v.ActualOutput = ""
		}
		out.Verdicts[i] = v
	}
	return &out
}

// Redacted returns a copy of the submission with a learner-safe outcome.
func (s *Submission) Redacted() *Submission {
	if s == nil {
		return nil
	}
	out := *s
	out.Outcome = s.Outcome.Redacted()
	return &out
}
