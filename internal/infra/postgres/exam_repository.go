package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"exam-session-service/internal/domain"
)

// ExamRepository stores exams as JSONB rows in Postgres. The document is the
// source of truth; updated_at is mirrored into a column for listing order.
type ExamRepository struct {
	pool *pgxpool.Pool
}

func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func (r *ExamRepository) ListExams(ctx context.Context) ([]domain.Exam, error) {
	rows, err := r.pool.Query(ctx, `SELECT data FROM exams ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	var exams []domain.Exam
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		var exam domain.Exam
		if err := json.Unmarshal(raw, &exam); err != nil {
			return nil, fmt.Errorf("unmarshal exam: %w", err)
		}
		exams = append(exams, exam)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

func (r *ExamRepository) GetExam(ctx context.Context, id string) (domain.Exam, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM exams WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Exam{}, domain.ErrExamNotFound
	}
	if err != nil {
		return domain.Exam{}, fmt.Errorf("load exam: %w", err)
	}
	var exam domain.Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		return domain.Exam{}, fmt.Errorf("unmarshal exam: %w", err)
	}
	return exam, nil
}

func (r *ExamRepository) UpsertExam(ctx context.Context, exam domain.Exam) error {
	data, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO exams (id, data, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		exam.ID, data, exam.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert exam: %w", err)
	}
	return nil
}

func (r *ExamRepository) DeleteExam(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return nil
}
