package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"

	"github.com/jackc/pgx/v5/pgtype"
)

// ProblemRepository is read-only: problems are authored and published elsewhere.
type ProblemRepository interface {
	// FindProblemByID returns a published problem with its test cases in declared order.
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
}

type LessonRepository interface {
	FindLessonByID(ctx context.Context, id string) (*model.Lesson, error)
}

type pgProblemRepository struct {
	db      *sql.DB
	typeMap *pgtype.Map
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db, typeMap: pgtype.NewMap()}
}

const problemColumns = `p.id, p.slug, p.title, p.track, p.difficulty, p.statement, p.status, p.lesson_id,
       p.starter_code, p.allowed_languages, p.learning_objectives, p.lenient_comparison,
       p.time_limit_ms, p.created_at`

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems p WHERE p.id = $1 AND p.status = $2`
	return r.findOne(ctx, "FindProblemByID", query, id)
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	query := `SELECT ` + problemColumns + ` FROM problems p WHERE p.slug = $1 AND p.status = $2`
	return r.findOne(ctx, "FindProblemBySlug", query, slug)
}

func (r *pgProblemRepository) findOne(ctx context.Context, op, query, arg string) (*model.Problem, error) {
	var (
		p           model.Problem
		starterJSON []byte
		languages   []string
		objectives  []string
	)
	err := r.db.QueryRowContext(ctx, query, arg, model.StatusPublished).Scan(
		&p.ID, &p.Slug, &p.Title, &p.Track, &p.Difficulty, &p.Statement, &p.Status, &p.LessonID,
		&starterJSON, r.typeMap.SQLScanner(&languages), r.typeMap.SQLScanner(&objectives), &p.LenientComparison,
		&p.TimeLimitMs, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.%s: %w", op, err)
	}

	if len(starterJSON) > 0 {
		if err := json.Unmarshal(starterJSON, &p.StarterCode); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.%s starter_code: %w", op, err)
		}
	}
	p.AllowedLanguages = make([]model.Language, 0, len(languages))
	for _, l := range languages {
		p.AllowedLanguages = append(p.AllowedLanguages, model.Language(l))
	}
	p.LearningObjectives = objectives

	p.TestCases, err = r.getTestCases(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pgProblemRepository) getTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, input, expected_output, is_hidden, sort_order
	          FROM test_cases WHERE problem_id = $1 ORDER BY sort_order ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.getTestCases: %w", err)
	}
	defer rows.Close()

	testCases := []model.TestCase{}
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.Input, &tc.ExpectedOutput, &tc.IsHidden, &tc.SortOrder); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.getTestCases scan: %w", err)
		}
		testCases = append(testCases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.getTestCases rows: %w", err)
	}
	return testCases, nil
}

type pgLessonRepository struct {
	db      *sql.DB
	typeMap *pgtype.Map
}

func NewPgLessonRepository(db *sql.DB) LessonRepository {
	return &pgLessonRepository{db: db, typeMap: pgtype.NewMap()}
}

func (r *pgLessonRepository) FindLessonByID(ctx context.Context, id string) (*model.Lesson, error) {
	query := `SELECT id, slug, title, track, difficulty, summary, learning_objectives
	          FROM lessons WHERE (id = $1 OR slug = $1) AND is_published = TRUE`

	var l model.Lesson
	var objectives []string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.Slug, &l.Title, &l.Track, &l.Difficulty, &l.Summary, r.typeMap.SQLScanner(&objectives),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgLessonRepository.FindLessonByID: %w", err)
	}
	l.LearningObjectives = objectives

	rows, err := r.db.QueryContext(ctx,
		`SELECT prompt, expected_answer FROM lesson_questions WHERE lesson_id = $1 ORDER BY sort_order ASC`, l.ID)
	if err != nil {
		return nil, fmt.Errorf("pgLessonRepository.FindLessonByID questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var q model.EmbeddedQuestion
		if err := rows.Scan(&q.Prompt, &q.ExpectedAnswer); err != nil {
			return nil, fmt.Errorf("pgLessonRepository.FindLessonByID scan: %w", err)
		}
		l.EmbeddedQuestions = append(l.EmbeddedQuestions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgLessonRepository.FindLessonByID rows: %w", err)
	}
	return &l, nil
}
