package service

import (
	"context"
	"errors"

	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/domain/repository"

	"github.com/gosimple/slug"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
}

func NewProblemService(probRepo repository.ProblemRepository) *ProblemService {
	return &ProblemService{problemRepo: probRepo}
}

// ProblemView is what the workspace shows before the learner writes code.
type ProblemView struct {
	*model.Problem
	SampleCases []model.TestCase `json:"sample_cases"`
	HiddenCount int              `json:"hidden_count"`
}

// GetProblem resolves a published problem by id or slug.
func (s *ProblemService) GetProblem(ctx context.Context, ref string) (*ProblemView, error) {
	if ref == "" {
		return nil, common.Errorf("problem reference is required: %w", common.ErrBadRequest)
	}
	problem, err := s.problemRepo.FindProblemByID(ctx, ref)
	if errors.Is(err, common.ErrNotFound) {
		problem, err = s.problemRepo.FindProblemBySlug(ctx, slug.Make(ref))
	}
	if err != nil {
		return nil, common.Errorf("failed to load problem %s: %w", ref, err)
	}

	samples, _ := problem.CasesFor(model.ModeRun)
	return &ProblemView{
		Problem:     problem,
		SampleCases: samples,
		HiddenCount: len(problem.TestCases) - len(samples),
	}, nil
}
