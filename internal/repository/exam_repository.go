package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certlab/examd/internal/model"
)

// ExamRepository handles exam definition data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID, including its objective weights.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, duration_minutes, question_count,
		        passing_score, shuffle_questions, status, created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &e.QuestionCount,
		&e.PassingScore, &e.ShuffleQuestions, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	objectives, err := r.ListObjectives(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(objectives) > 0 {
		e.ObjectiveWeights = make(map[string]float64, len(objectives))
		for _, o := range objectives {
			e.ObjectiveWeights[o.ID] = o.Weight
		}
	}
	return e, nil
}

// ListObjectives retrieves the scoring objectives of an exam blueprint.
func (r *ExamRepository) ListObjectives(ctx context.Context, examID uuid.UUID) ([]model.Objective, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, name, weight
		 FROM objectives WHERE exam_id = $1
		 ORDER BY id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objectives []model.Objective
	for rows.Next() {
		var o model.Objective
		if err := rows.Scan(&o.ID, &o.ExamID, &o.Name, &o.Weight); err != nil {
			return nil, err
		}
		objectives = append(objectives, o)
	}
	return objectives, rows.Err()
}

// ListPublishedPaginated retrieves the candidate-visible exam catalog.
func (r *ExamRepository) ListPublishedPaginated(ctx context.Context, limit, offset int) ([]model.ExamSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE status = $1`, model.ExamStatusPublished,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, title, duration_minutes, question_count, passing_score, status
	          FROM exams WHERE status = $1
	          ORDER BY title LIMIT $` + strconv.Itoa(2) + ` OFFSET $` + strconv.Itoa(3)

	rows, err := r.pool.Query(ctx, query, model.ExamStatusPublished, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.ExamSummary
	for rows.Next() {
		var e model.ExamSummary
		if err := rows.Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.QuestionCount, &e.PassingScore, &e.Status); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// CountQuestions returns the bank size for an exam, used to validate session
// configuration before a start attempt hits the engine.
func (r *ExamRepository) CountQuestions(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE exam_id = $1`, examID,
	).Scan(&n)
	return n, err
}
