package guardrail

import (
	"context"
	"errors"
	"strings"
	"time"

	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/llm"
	"practice_mentor/internal/platform/logger"
	"practice_mentor/internal/platform/metrics"

	"go.uber.org/zap"
)

const (
	ReasonModelTimeout  = "model_timeout"
	ReasonModelError    = "model_error"
	ReasonEmptyResponse = "empty_response"

	maxFollowUps = 3
)

// Model completes a chat conversation. *llm.Client satisfies it.
type Model interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

type Config struct {
	MaxCodeLines int
	HistoryTurns int
	Timeout      time.Duration
}

// Engine produces guidance for one hint request. It always answers: model
// failures and replies that fail the filter twice become canned guidance.
type Engine struct {
	model        Model
	filter       *Filter
	historyTurns int
	timeout      time.Duration
}

func NewEngine(m Model, cfg Config) *Engine {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Engine{
		model:        m,
		filter:       NewFilter(cfg.MaxCodeLines),
		historyTurns: cfg.HistoryTurns,
		timeout:      cfg.Timeout,
	}
}

func (e *Engine) RequestHint(ctx context.Context, req model.HintRequest, sc ScopeContext) *model.HintResponse {
	kind := Classify(req)
	resp := e.generate(ctx, kind, req, sc)
	metrics.HintDecisions.WithLabelValues(string(resp.Kind), string(resp.Decision)).Inc()
	logger.Info(ctx, "hint produced",
		zap.String("scope", sc.Scope.Key()),
		zap.String("kind", string(resp.Kind)),
		zap.String("decision", string(resp.Decision)),
		zap.String("reason", resp.Reason),
	)
	return resp
}

func (e *Engine) generate(ctx context.Context, kind model.HintKind, req model.HintRequest, sc ScopeContext) *model.HintResponse {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	messages := BuildMessages(kind, req, sc, e.scopedHistory(ctx, req, sc.Scope))
	draft, err := e.model.Complete(ctx, messages)
	if err != nil {
		return Fallback(kind, failureReason(ctx, err))
	}
	if strings.TrimSpace(draft) == "" {
		return Fallback(kind, ReasonEmptyResponse)
	}

	violation := e.filter.Check(draft, sc)
	if violation == nil {
		return release(kind, draft, model.DecisionAllowed, "")
	}
	logger.Warn(ctx, "hint draft rejected, re-prompting", zap.String("rule", violation.Rule), zap.String("detail", violation.Detail))

	retry := append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: draft},
		llm.Message{Role: llm.RoleUser, Content: RepromptInstruction},
	)
	second, err := e.model.Complete(ctx, retry)
	if err != nil {
		return Fallback(kind, failureReason(ctx, err))
	}
	if strings.TrimSpace(second) == "" {
		return Fallback(kind, ReasonEmptyResponse)
	}
	if v := e.filter.Check(second, sc); v != nil {
		return Fallback(kind, v.Rule)
	}
	return release(kind, second, model.DecisionRewritten, violation.Rule)
}

// scopedHistory drops history that belongs to another scope and keeps the
// most recent turns.
func (e *Engine) scopedHistory(ctx context.Context, req model.HintRequest, scope model.Scope) []model.Turn {
	if req.History.Len() == 0 {
		return nil
	}
	if !req.History.Scope().Same(scope) {
		logger.Warn(ctx, "discarding history from another scope",
			zap.String("history_scope", req.History.Scope().Key()),
			zap.String("scope", scope.Key()),
		)
		return nil
	}
	turns := req.History.Turns()
	if len(turns) > e.historyTurns {
		turns = turns[len(turns)-e.historyTurns:]
	}
	return turns
}

func failureReason(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonModelTimeout
	}
	return ReasonModelError
}

func release(kind model.HintKind, text string, decision model.GuardrailDecision, reason string) *model.HintResponse {
	text = strings.TrimSpace(text)
	return &model.HintResponse{
		Guidance:  text,
		FollowUps: ExtractFollowUps(text, maxFollowUps),
		Kind:      kind,
		Decision:  decision,
		Reason:    reason,
	}
}

// ExtractFollowUps collects up to max lines that are questions.
func ExtractFollowUps(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		if !strings.HasSuffix(line, "?") || len(line) < 4 {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}
