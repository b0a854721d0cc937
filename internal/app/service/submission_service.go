package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/domain/repository"
	"practice_mentor/internal/platform/logger"
	"practice_mentor/internal/platform/metrics"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// RateLimiter admits at most max calls per key per window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) error
}

// ProgressPublisher hands accepted submissions to the progress aggregator.
type ProgressPublisher interface {
	NotifyAccepted(ctx context.Context, event model.ProgressEvent) error
}

type SubmissionServiceConfig struct {
	MaxSourceBytes      int
	SubmitRatePerMinute int
}

// SubmissionService orchestrates one learner run or submit: validate, record
// pending, evaluate, complete the record, then tell the aggregator.
type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	evaluator      *Evaluator
	progress       ProgressPublisher
	limiter        RateLimiter
	cfg            SubmissionServiceConfig

	now   func() time.Time
	newID func() string
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	evaluator *Evaluator,
	progress ProgressPublisher,
	limiter RateLimiter,
	cfg SubmissionServiceConfig,
) *SubmissionService {
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = 64 << 10
	}
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		evaluator:      evaluator,
		progress:       progress,
		limiter:        limiter,
		cfg:            cfg,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

type SubmissionRequest struct {
	ProblemID string         `json:"-"`
	Mode      model.Mode     `json:"-"`
	Source    string         `json:"source"`
	Language  model.Language `json:"language"`
}

func (r SubmissionRequest) Validate(maxSourceBytes int) error {
	languages := make([]interface{}, 0, len(model.SupportedLanguages()))
	for _, l := range model.SupportedLanguages() {
		languages = append(languages, l)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProblemID, validation.Required),
		validation.Field(&r.Mode, validation.Required, validation.By(knownMode)),
		validation.Field(&r.Source,
			validation.Required,
			validation.Length(0, maxSourceBytes),
			validation.By(notBlank),
		),
		validation.Field(&r.Language, validation.Required, validation.In(languages...).Error("is not a supported language")),
	)
}

func knownMode(value interface{}) error {
	if m, _ := value.(model.Mode); !m.IsValid() {
		return errors.New("must be run or submit")
	}
	return nil
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be blank")
	}
	return nil
}

// SourceDigest fingerprints source for the audit record.
func SourceDigest(source string) string {
	sum := blake2b.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// RunCode evaluates sample cases only and returns just the outcome. The
// attempt is recorded for audit but never counts toward progress.
func (s *SubmissionService) RunCode(ctx context.Context, userID string, req SubmissionRequest) (*model.Outcome, error) {
	req.Mode = model.ModeRun
	sub, err := s.HandleSubmission(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return sub.Outcome, nil
}

// SubmitCode evaluates every case, hidden ones included.
func (s *SubmissionService) SubmitCode(ctx context.Context, userID string, req SubmissionRequest) (*model.Submission, error) {
	req.Mode = model.ModeSubmit
	return s.HandleSubmission(ctx, userID, req)
}

func (s *SubmissionService) HandleSubmission(ctx context.Context, userID string, req SubmissionRequest) (*model.Submission, error) {
	if userID == "" {
		return nil, common.ErrUnauthorized
	}
	if err := req.Validate(s.cfg.MaxSourceBytes); err != nil {
		return nil, common.NewValidationError(err)
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, common.Errorf("failed to load problem %s: %w", req.ProblemID, err)
	}
	if !problem.AllowsLanguage(req.Language) {
		return nil, common.NewValidationError(validation.Errors{
			"language": fmt.Errorf("%s is not allowed for this problem", req.Language),
		})
	}
	if cases, _ := problem.CasesFor(req.Mode); len(cases) == 0 {
		return nil, common.NewValidationError(validation.Errors{
			"problem": fmt.Errorf("no test cases available for %s", req.Mode),
		})
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, "ratelimit:submission:"+userID, s.cfg.SubmitRatePerMinute, time.Minute); err != nil {
			return nil, err
		}
	}

	sub := &model.Submission{
		ID:           s.newID(),
		UserID:       userID,
		ProblemID:    problem.ID,
		Source:       req.Source,
		SourceDigest: SourceDigest(req.Source),
		Language:     req.Language,
		Mode:         req.Mode,
		State:        model.SubmissionPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.submissionRepo.CreatePending(ctx, sub); err != nil {
		return nil, common.Errorf("failed to record submission: %w", err)
	}
	logger.Info(ctx, "submission recorded",
		zap.String("submission_id", sub.ID),
		zap.String("problem_id", sub.ProblemID),
		zap.String("mode", string(sub.Mode)),
		zap.String("language", string(sub.Language)),
	)

	// Evaluation outlives a disconnecting client so the record never stays pending.
	evalCtx := context.WithoutCancel(ctx)
	outcome := s.evaluator.Evaluate(evalCtx, problem, req.Source, req.Language, req.Mode)

	evaluatedAt := s.now().UTC()
	if err := s.submissionRepo.CompleteEvaluation(evalCtx, sub.ID, outcome, evaluatedAt); err != nil {
		return nil, common.Errorf("failed to record outcome for submission %s: %w", sub.ID, err)
	}
	sub.State = model.SubmissionEvaluated
	sub.EvaluatedAt = &evaluatedAt
	sub.Outcome = outcome
	metrics.Outcomes.WithLabelValues(string(sub.Mode), string(outcome.Status)).Inc()

	if sub.Mode == model.ModeSubmit && outcome.Status == model.OutcomeAccepted {
		s.notifyAccepted(evalCtx, sub)
	}
	return sub, nil
}

// notifyAccepted is best effort: the outcome is already durable.
func (s *SubmissionService) notifyAccepted(ctx context.Context, sub *model.Submission) {
	if s.progress == nil {
		return
	}
	firstAt, err := s.submissionRepo.FirstAcceptedAt(ctx, sub.UserID, sub.ProblemID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			logger.Warn(ctx, "could not look up first acceptance, using this submission",
				zap.String("submission_id", sub.ID), zap.Error(err))
		}
		firstAt = *sub.EvaluatedAt
	}

	event := model.ProgressEvent{
		UserID:          sub.UserID,
		ProblemID:       sub.ProblemID,
		SubmissionID:    sub.ID,
		FirstAcceptedAt: firstAt,
	}
	if err := s.progress.NotifyAccepted(ctx, event); err != nil {
		logger.Error(ctx, "failed to publish progress event",
			zap.String("submission_id", sub.ID), zap.Error(err))
	}
}

// GetSubmission returns a submission owned by userID.
func (s *SubmissionService) GetSubmission(ctx context.Context, userID, submissionID string) (*model.Submission, error) {
	if userID == "" {
		return nil, common.ErrUnauthorized
	}
	sub, err := s.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, common.Errorf("submission %s belongs to another user: %w", submissionID, common.ErrForbidden)
	}
	return sub, nil
}
