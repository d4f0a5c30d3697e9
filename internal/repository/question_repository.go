package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certlab/examd/internal/engine"
)

// QuestionRepository handles question-bank data access. It implements
// engine.QuestionStore.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// FetchQuestions samples questions from the exam's bank matching the filters.
// The sample order is random; the caller applies its own shuffle seed if it
// needs a reproducible sequence. A bank too small for the requested count is
// a ConfigurationError, not a short batch.
func (r *QuestionRepository) FetchQuestions(ctx context.Context, examID string, f engine.QuestionFilters) ([]engine.Question, error) {
	query := `
		SELECT id, prompt, question_type, difficulty, objective_id, explanation
		FROM questions
		WHERE exam_id = $1
	`
	args := []any{examID}

	if len(f.ObjectiveIDs) > 0 {
		args = append(args, f.ObjectiveIDs)
		query += fmt.Sprintf(" AND objective_id = ANY($%d)", len(args))
	}
	if f.MinDifficulty > 0 {
		args = append(args, f.MinDifficulty)
		query += fmt.Sprintf(" AND difficulty >= $%d", len(args))
	}
	if f.MaxDifficulty > 0 {
		args = append(args, f.MaxDifficulty)
		query += fmt.Sprintf(" AND difficulty <= $%d", len(args))
	}

	args = append(args, f.Count)
	query += fmt.Sprintf(" ORDER BY random() LIMIT $%d", len(args))

	qs, err := r.scanQuestions(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachOptions(ctx, qs); err != nil {
		return nil, err
	}
	if len(qs) != f.Count {
		return nil, &engine.ConfigurationError{
			Reason: fmt.Sprintf("bank has %d matching questions, need %d", len(qs), f.Count),
		}
	}
	return qs, nil
}

// FetchByIDs loads the given questions and returns them in the requested
// order. Missing ids are silently dropped; the caller compares lengths.
func (r *QuestionRepository) FetchByIDs(ctx context.Context, examID string, ids []string) ([]engine.Question, error) {
	qs, err := r.scanQuestions(ctx, `
		SELECT id, prompt, question_type, difficulty, objective_id, explanation
		FROM questions
		WHERE exam_id = $1 AND id = ANY($2)
	`, examID, ids)
	if err != nil {
		return nil, err
	}
	if err := r.attachOptions(ctx, qs); err != nil {
		return nil, err
	}

	byID := make(map[string]engine.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	ordered := make([]engine.Question, 0, len(qs))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

func (r *QuestionRepository) scanQuestions(ctx context.Context, query string, args ...any) ([]engine.Question, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []engine.Question
	for rows.Next() {
		var q engine.Question
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Type, &q.Difficulty, &q.ObjectiveID, &q.Explanation); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *QuestionRepository) attachOptions(ctx context.Context, qs []engine.Question) error {
	if len(qs) == 0 {
		return nil
	}
	ids := make([]string, len(qs))
	index := make(map[string]int, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
		index[q.ID] = i
	}

	rows, err := r.pool.Query(ctx, `
		SELECT question_id, id, option_text, is_correct
		FROM question_options
		WHERE question_id = ANY($1)
		ORDER BY question_id, ord
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var qid string
		var opt engine.Option
		if err := rows.Scan(&qid, &opt.ID, &opt.Text, &opt.Correct); err != nil {
			return err
		}
		i := index[qid]
		qs[i].Options = append(qs[i].Options, opt)
	}
	return rows.Err()
}
