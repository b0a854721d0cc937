package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// SubmissionRepository stores write-once submission records.
type SubmissionRepository interface {
	CreatePending(ctx context.Context, sub *model.Submission) error
	// CompleteEvaluation moves a submission from pending to evaluated. Any other
	// starting state yields common.ErrConflict.
	CompleteEvaluation(ctx context.Context, submissionID string, outcome *model.Outcome, evaluatedAt time.Time) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	// FirstAcceptedAt is the earliest accepted submit for the pair, or ErrNotFound.
	FirstAcceptedAt(ctx context.Context, userID, problemID string) (time.Time, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) CreatePending(ctx context.Context, s *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, source, source_digest, language, mode, state, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.ProblemID, s.Source, s.SourceDigest, s.Language, s.Mode, model.SubmissionPending, s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("submission %s already exists: %w", s.ID, common.ErrConflict)
		}
		return fmt.Errorf("pgSubmissionRepository.CreatePending: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) CompleteEvaluation(ctx context.Context, submissionID string, o *model.Outcome, evaluatedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CompleteEvaluation begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE submissions SET state = $1, status = $2, passed = $3, total = $4, score = $5, evaluated_at = $6
		 WHERE id = $7 AND state = $8`,
		model.SubmissionEvaluated, o.Status, o.Passed, o.Total, o.Score, evaluatedAt, submissionID, model.SubmissionPending)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CompleteEvaluation update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CompleteEvaluation rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("submission %s is not pending: %w", submissionID, common.ErrConflict)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO submission_verdicts (submission_id, case_index, hidden, expected_output, actual_output, matched, signal, execution_time_ms, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CompleteEvaluation prepare: %w", err)
	}
	defer stmt.Close()
	for _, v := range o.Verdicts {
		if _, err := stmt.ExecContext(ctx, submissionID, v.CaseIndex, v.Hidden, v.ExpectedOutput, v.ActualOutput, v.Matched, v.Signal, v.ExecutionTimeMs, v.Error); err != nil {
			return fmt.Errorf("pgSubmissionRepository.CompleteEvaluation verdict %d: %w", v.CaseIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgSubmissionRepository.CompleteEvaluation commit: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT id, user_id, problem_id, source, source_digest, language, mode, state, created_at,
	                 evaluated_at, status, passed, total, score
	          FROM submissions WHERE id = $1`

	var (
		s       model.Submission
		status  sql.NullString
		passed  sql.NullInt64
		total   sql.NullInt64
		score   decimal.NullDecimal
		outcome model.Outcome
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.ProblemID, &s.Source, &s.SourceDigest, &s.Language, &s.Mode, &s.State, &s.CreatedAt,
		&s.EvaluatedAt, &status, &passed, &total, &score,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	if s.State != model.SubmissionEvaluated {
		return &s, nil
	}

	outcome.Status = model.OutcomeStatus(status.String)
	outcome.Passed = int(passed.Int64)
	outcome.Total = int(total.Int64)
	outcome.Score = score.Decimal

	rows, err := r.db.QueryContext(ctx,
		`SELECT case_index, hidden, expected_output, actual_output, matched, signal, execution_time_ms, error
		 FROM submission_verdicts WHERE submission_id = $1 ORDER BY case_index ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID verdicts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v model.Verdict
		if err := rows.Scan(&v.CaseIndex, &v.Hidden, &v.ExpectedOutput, &v.ActualOutput, &v.Matched, &v.Signal, &v.ExecutionTimeMs, &v.Error); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID scan: %w", err)
		}
		outcome.Verdicts = append(outcome.Verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID rows: %w", err)
	}
	s.Outcome = &outcome
	return &s, nil
}

func (r *pgSubmissionRepository) FirstAcceptedAt(ctx context.Context, userID, problemID string) (time.Time, error) {
	var first sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(evaluated_at) FROM submissions
		 WHERE user_id = $1 AND problem_id = $2 AND mode = $3 AND status = $4`,
		userID, problemID, model.ModeSubmit, model.OutcomeAccepted).Scan(&first)
	if err != nil {
		return time.Time{}, fmt.Errorf("pgSubmissionRepository.FirstAcceptedAt: %w", err)
	}
	if !first.Valid {
		return time.Time{}, common.ErrNotFound
	}
	return first.Time, nil
}
