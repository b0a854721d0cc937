package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/logger"
	"practice_mentor/internal/platform/sandbox"

	"go.uber.org/zap"
)

const maxErrorText = 2000

// Executor runs one program against one input. *sandbox.Client satisfies it.
type Executor interface {
	Execute(ctx context.Context, lang model.Language, source, stdin string, timeLimit time.Duration) (*sandbox.Result, error)
}

// Evaluator runs a problem's test cases and reconciles results into an Outcome.
type Evaluator struct {
	executor         Executor
	stopRunOnFailure bool
}

func NewEvaluator(executor Executor, stopRunOnFailure bool) *Evaluator {
	return &Evaluator{executor: executor, stopRunOnFailure: stopRunOnFailure}
}

// Evaluate never fails as a whole: execution problems become per-case verdicts.
// Cases run one at a time in declared order. In run mode evaluation may stop at
// the first failing case; submit mode always evaluates everything.
func (e *Evaluator) Evaluate(ctx context.Context, problem *model.Problem, source string, lang model.Language, mode model.Mode) *model.Outcome {
	cases, indexes := problem.CasesFor(mode)
	timeLimit := time.Duration(problem.TimeLimitMs) * time.Millisecond

	verdicts := make([]model.Verdict, 0, len(cases))
	for i, tc := range cases {
		v := e.runCase(ctx, problem, tc, indexes[i], source, lang, timeLimit)
		verdicts = append(verdicts, v)
		if mode == model.ModeRun && e.stopRunOnFailure && !v.Matched {
			break
		}
	}

	outcome := model.NewOutcome(verdicts, len(cases))
	logger.Info(ctx, "evaluation finished",
		zap.String("problem_id", problem.ID),
		zap.String("mode", string(mode)),
		zap.String("status", string(outcome.Status)),
		zap.Int("passed", outcome.Passed),
		zap.Int("total", outcome.Total),
		zap.Int("evaluated", len(verdicts)),
	)
	return outcome
}

func (e *Evaluator) runCase(ctx context.Context, problem *model.Problem, tc model.TestCase, index int, source string, lang model.Language, timeLimit time.Duration) model.Verdict {
	v := model.Verdict{
		CaseIndex:      index,
		Hidden:         tc.IsHidden,
		ExpectedOutput: tc.ExpectedOutput,
	}

	res, err := e.executor.Execute(ctx, lang, source, tc.Input, timeLimit)
	if err != nil {
		v.Signal, v.Error = classifyExecutionError(err)
		logger.Warn(ctx, "test case execution failed",
			zap.String("problem_id", problem.ID),
			zap.Int("case_index", index),
			zap.String("signal", string(v.Signal)),
			zap.Error(err),
		)
		return v
	}

	v.ActualOutput = cleanText(res.Stdout)
	v.ExecutionTimeMs = res.RuntimeMs
	switch {
	case res.TimedOut:
		v.Signal = model.SignalTimeout
		v.Error = "time limit exceeded"
	case res.ExitCode != 0:
		v.Signal = model.SignalRuntimeError
		v.Error = runtimeErrorText(res)
	case OutputsMatch(tc.ExpectedOutput, res.Stdout, problem.LenientComparison):
		v.Signal = model.SignalOK
		v.Matched = true
	default:
		v.Signal = model.SignalMismatch
	}
	return v
}

func classifyExecutionError(err error) (model.Signal, string) {
	switch {
	case errors.Is(err, common.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return model.SignalTimeout, "time limit exceeded"
	case errors.Is(err, context.Canceled):
		return model.SignalRuntimeError, "evaluation cancelled"
	case errors.Is(err, common.ErrUnsupportedLanguage):
		return model.SignalRuntimeError, "language is not supported by the sandbox"
	}
	var execErr *common.ExecutionError
	if errors.As(err, &execErr) {
		return model.SignalRuntimeError, "execution service unavailable (" + string(execErr.Kind) + ")"
	}
	return model.SignalRuntimeError, truncate(cleanText(err.Error()), maxErrorText)
}

func runtimeErrorText(res *sandbox.Result) string {
	stderr := strings.TrimSpace(cleanText(res.Stderr))
	if stderr == "" {
		return fmt.Sprintf("process exited with code %d", res.ExitCode)
	}
	return truncate(stderr, maxErrorText)
}

// cleanText makes program output safe to store and serialise as JSON text.
func cleanText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
