package service

import (
	"context"
	"errors"
	"time"

	"practice_mentor/internal/app/guardrail"
	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/domain/repository"
	"practice_mentor/internal/platform/logger"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const maxQuestionRunes = 2000

// HintEngine produces guarded guidance. *guardrail.Engine satisfies it.
type HintEngine interface {
	RequestHint(ctx context.Context, req model.HintRequest, sc guardrail.ScopeContext) *model.HintResponse
}

type MentorServiceConfig struct {
	MaxSourceBytes    int
	HintRatePerMinute int
}

type MentorService struct {
	engine      HintEngine
	problemRepo repository.ProblemRepository
	lessonRepo  repository.LessonRepository
	history     *HistoryStore
	limiter     RateLimiter
	cfg         MentorServiceConfig
}

func NewMentorService(
	engine HintEngine,
	probRepo repository.ProblemRepository,
	lessonRepo repository.LessonRepository,
	history *HistoryStore,
	limiter RateLimiter,
	cfg MentorServiceConfig,
) *MentorService {
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = 64 << 10
	}
	return &MentorService{
		engine:      engine,
		problemRepo: probRepo,
		lessonRepo:  lessonRepo,
		history:     history,
		limiter:     limiter,
		cfg:         cfg,
	}
}

func validateHintRequest(req model.HintRequest, maxSourceBytes int) error {
	return validation.Errors{
		"scope.kind": validation.Validate(req.Scope.Kind, validation.Required, validation.In(model.ScopeProblem, model.ScopeLesson)),
		"scope.id":   validation.Validate(req.Scope.ID, validation.Required),
		"question":   validation.Validate(req.Question, validation.RuneLength(0, maxQuestionRunes)),
		"context.code": validation.Validate(req.Context.Code,
			validation.Length(0, maxSourceBytes)),
		"context.error_text": validation.Validate(req.Context.ErrorText,
			validation.Length(0, maxSourceBytes)),
	}.Filter()
}

// RequestHint answers one learner question within a problem or lesson scope.
// Once the request is valid and the scope exists, it always returns guidance.
func (s *MentorService) RequestHint(ctx context.Context, userID string, req model.HintRequest) (*model.HintResponse, error) {
	if userID == "" {
		return nil, common.ErrUnauthorized
	}
	if err := validateHintRequest(req, s.cfg.MaxSourceBytes); err != nil {
		return nil, common.NewValidationError(err)
	}

	sc, err := s.loadScope(ctx, req.Scope)
	if err != nil {
		return nil, err
	}

	// Hints fail open when the limiter itself is unavailable.
	if s.limiter != nil {
		err := s.limiter.Allow(ctx, "ratelimit:hint:"+userID, s.cfg.HintRatePerMinute, time.Minute)
		if errors.Is(err, common.ErrTooManyRequests) {
			return nil, err
		}
		if err != nil {
			logger.Warn(ctx, "hint rate limit unavailable, allowing request", zap.String("user_id", userID), zap.Error(err))
		}
	}

	req.Scope = sc.Scope
	if req.History == nil && s.history != nil {
		history, err := s.history.Load(ctx, userID, sc.Scope)
		if err != nil {
			logger.Warn(ctx, "continuing without hint history", zap.Error(err))
		} else {
			req.History = history
		}
	}

	resp := s.engine.RequestHint(ctx, req, sc)

	if s.history != nil {
		learnerTurn := req.Question
		if learnerTurn == "" {
			learnerTurn = "(asked for a hint)"
		}
		err := s.history.Append(ctx, userID, sc.Scope,
			model.Turn{Role: model.RoleLearner, Content: learnerTurn},
			model.Turn{Role: model.RoleMentor, Content: resp.Guidance},
		)
		if err != nil {
			logger.Warn(ctx, "failed to save hint history", zap.Error(err))
		}
	}
	return resp, nil
}

// loadScope resolves a problem or lesson by id, falling back to its slug, and
// returns the canonical scope.
func (s *MentorService) loadScope(ctx context.Context, scope model.Scope) (guardrail.ScopeContext, error) {
	switch scope.Kind {
	case model.ScopeProblem:
		p, err := s.problemRepo.FindProblemByID(ctx, scope.ID)
		if errors.Is(err, common.ErrNotFound) {
			p, err = s.problemRepo.FindProblemBySlug(ctx, slug.Make(scope.ID))
		}
		if err != nil {
			return guardrail.ScopeContext{}, common.Errorf("failed to load problem %s: %w", scope.ID, err)
		}
		return guardrail.ScopeContext{
			Scope:      model.Scope{Kind: model.ScopeProblem, ID: p.ID},
			Title:      p.Title,
			Statement:  p.Statement,
			Objectives: p.LearningObjectives,
		}, nil

	case model.ScopeLesson:
		l, err := s.lessonRepo.FindLessonByID(ctx, scope.ID)
		if err != nil {
			return guardrail.ScopeContext{}, common.Errorf("failed to load lesson %s: %w", scope.ID, err)
		}
		answers := make([]string, 0, len(l.EmbeddedQuestions))
		for _, q := range l.EmbeddedQuestions {
			answers = append(answers, q.ExpectedAnswer)
		}
		return guardrail.ScopeContext{
			Scope:            model.Scope{Kind: model.ScopeLesson, ID: l.ID},
			Title:            l.Title,
			Statement:        l.Summary,
			Objectives:       l.LearningObjectives,
			ProtectedAnswers: answers,
		}, nil
	}
	return guardrail.ScopeContext{}, common.NewValidationError(validation.Errors{"scope.kind": errors.New("must be problem or lesson")})
}
