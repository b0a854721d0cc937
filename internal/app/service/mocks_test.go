package service

import (
	"context"
	"sync"
	"time"

	"practice_mentor/internal/app/guardrail"
	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/sandbox"
)

type executeCall struct {
	lang      model.Language
	stdin     string
	timeLimit time.Duration
}

// fakeExecutor answers by stdin; unknown inputs echo nothing.
type fakeExecutor struct {
	mu      sync.Mutex
	results map[string]*sandbox.Result
	errs    map[string]error
	calls   []executeCall
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{results: map[string]*sandbox.Result{}, errs: map[string]error{}}
}

func (f *fakeExecutor) on(stdin string, res *sandbox.Result) *fakeExecutor {
	f.results[stdin] = res
	return f
}

func (f *fakeExecutor) fail(stdin string, err error) *fakeExecutor {
	f.errs[stdin] = err
	return f
}

func (f *fakeExecutor) Execute(ctx context.Context, lang model.Language, source, stdin string, timeLimit time.Duration) (*sandbox.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, executeCall{lang: lang, stdin: stdin, timeLimit: timeLimit})
	if err, ok := f.errs[stdin]; ok {
		return nil, err
	}
	if res, ok := f.results[stdin]; ok {
		copied := *res
		return &copied, nil
	}
	return &sandbox.Result{}, nil
}

type fakeProblemRepo struct {
	byID   map[string]*model.Problem
	bySlug map[string]*model.Problem
}

func newFakeProblemRepo(problems ...*model.Problem) *fakeProblemRepo {
	r := &fakeProblemRepo{byID: map[string]*model.Problem{}, bySlug: map[string]*model.Problem{}}
	for _, p := range problems {
		r.byID[p.ID] = p
		r.bySlug[p.Slug] = p
	}
	return r
}

func (r *fakeProblemRepo) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return nil, common.ErrNotFound
}

func (r *fakeProblemRepo) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	if p, ok := r.bySlug[slug]; ok {
		return p, nil
	}
	return nil, common.ErrNotFound
}

type fakeLessonRepo struct {
	lessons map[string]*model.Lesson
}

func (r *fakeLessonRepo) FindLessonByID(ctx context.Context, id string) (*model.Lesson, error) {
	if l, ok := r.lessons[id]; ok {
		return l, nil
	}
	return nil, common.ErrNotFound
}

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	subs        map[string]*model.Submission
	firstAt     map[string]time.Time
	createErr   error
	completeErr error
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{subs: map[string]*model.Submission{}, firstAt: map[string]time.Time{}}
}

func (r *fakeSubmissionRepo) CreatePending(ctx context.Context, sub *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copied := *sub
	r.subs[sub.ID] = &copied
	return nil
}

func (r *fakeSubmissionRepo) CompleteEvaluation(ctx context.Context, id string, outcome *model.Outcome, evaluatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	sub, ok := r.subs[id]
	if !ok {
		return common.ErrNotFound
	}
	if sub.State != model.SubmissionPending {
		return common.ErrConflict
	}
	sub.State = model.SubmissionEvaluated
	sub.Outcome = outcome
	sub.EvaluatedAt = &evaluatedAt
	if sub.Mode == model.ModeSubmit && outcome.Status == model.OutcomeAccepted {
		key := sub.UserID + "/" + sub.ProblemID
		if first, ok := r.firstAt[key]; !ok || evaluatedAt.Before(first) {
			r.firstAt[key] = evaluatedAt
		}
	}
	return nil
}

func (r *fakeSubmissionRepo) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeSubmissionRepo) FirstAcceptedAt(ctx context.Context, userID, problemID string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at, ok := r.firstAt[userID+"/"+problemID]; ok {
		return at, nil
	}
	return time.Time{}, common.ErrNotFound
}

type fakeLimiter struct {
	err  error
	keys []string
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	l.keys = append(l.keys, key)
	return l.err
}

type fakeProgress struct {
	events []model.ProgressEvent
	err    error
}

func (p *fakeProgress) NotifyAccepted(ctx context.Context, event model.ProgressEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type fakeEngine struct {
	gotReq   model.HintRequest
	gotScope guardrail.ScopeContext
	resp     *model.HintResponse
}

func (e *fakeEngine) RequestHint(ctx context.Context, req model.HintRequest, sc guardrail.ScopeContext) *model.HintResponse {
	e.gotReq = req
	e.gotScope = sc
	return e.resp
}
