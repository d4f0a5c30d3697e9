package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certlab/examd/internal/engine"
	"github.com/certlab/examd/internal/model"
)

// SessionRepository handles durable session state: the per-session record,
// finalized results, crash-recovery snapshots, and violation audit rows. The
// hot path lives in Redis; Postgres is the system of record behind it.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts the session record when a candidate starts a session.
func (r *SessionRepository) Create(ctx context.Context, rec *model.SessionRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, exam_id, candidate_id, mode, started_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		rec.SessionID, rec.ExamID, rec.CandidateID, rec.Mode, rec.StartedAt)
	return err
}

// GetByID retrieves a session record.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	rec := &model.SessionRecord{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, candidate_id, mode, started_at, finished_at, score, passed
		 FROM sessions WHERE id = $1`, sessionID,
	).Scan(&rec.SessionID, &rec.ExamID, &rec.CandidateID, &rec.Mode,
		&rec.StartedAt, &rec.FinishedAt, &rec.Score, &rec.Passed)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByCandidate retrieves a candidate's session history, newest first.
func (r *SessionRepository) ListByCandidate(ctx context.Context, candidateID string) ([]model.SessionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, candidate_id, mode, started_at, finished_at, score, passed
		 FROM sessions
		 WHERE candidate_id = $1
		 ORDER BY started_at DESC`, candidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.SessionRecord
	for rows.Next() {
		var rec model.SessionRecord
		if err := rows.Scan(&rec.SessionID, &rec.ExamID, &rec.CandidateID, &rec.Mode,
			&rec.StartedAt, &rec.FinishedAt, &rec.Score, &rec.Passed); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ─── Finalized results ──────────────────────────────────────────────

// BulkFinalize marks a batch of sessions finished using a single UNNEST
// update, and stores the full result document alongside.
func (r *SessionRepository) BulkFinalize(ctx context.Context, results []*engine.FinalizedResult) error {
	n := len(results)
	ids := make([]string, 0, n)
	scores := make([]float64, 0, n)
	passed := make([]bool, 0, n)
	docs := make([]string, 0, n)
	finishedAts := make([]time.Time, 0, n)

	now := time.Now()
	for _, res := range results {
		doc, err := json.Marshal(res)
		if err != nil {
			return err
		}
		ids = append(ids, res.SessionID)
		scores = append(scores, res.Score)
		passed = append(passed, res.Passed)
		docs = append(docs, string(doc))
		finishedAts = append(finishedAts, now)
	}

	query := `
		UPDATE sessions AS s
		SET score = t.score,
		    passed = t.passed,
		    result = t.result::jsonb,
		    finished_at = t.finished_at
		FROM (
			SELECT u.id, u.score, u.passed, u.result, u.finished_at
			FROM UNNEST(
				$1::uuid[],
				$2::float8[],
				$3::bool[],
				$4::text[],
				$5::timestamptz[]
			) AS u (id, score, passed, result, finished_at)
		) AS t
		WHERE s.id = t.id
	`
	_, err := r.pool.Exec(ctx, query, ids, scores, passed, docs, finishedAts)
	return err
}

// Finalize is the row-by-row fallback when a bulk update fails.
func (r *SessionRepository) Finalize(ctx context.Context, res *engine.FinalizedResult) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE sessions
		 SET score = $1, passed = $2, result = $3::jsonb, finished_at = NOW()
		 WHERE id = $4`,
		res.Score, res.Passed, doc, res.SessionID)
	return err
}

// GetResult retrieves a finalized result document, or nil for an unfinished
// session.
func (r *SessionRepository) GetResult(ctx context.Context, sessionID string) (*engine.FinalizedResult, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT result FROM sessions WHERE id = $1 AND result IS NOT NULL`, sessionID,
	).Scan(&doc)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res := &engine.FinalizedResult{}
	if err := json.Unmarshal(doc, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ─── Crash-recovery snapshots ───────────────────────────────────────

// UpsertSnapshot writes the durable copy of a session snapshot. Redis holds
// the hot copy; this row only matters when Redis loses it.
func (r *SessionRepository) UpsertSnapshot(ctx context.Context, snap *engine.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO session_snapshots (session_id, snapshot, updated_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (session_id)
		 DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = NOW()`,
		snap.SessionID, doc)
	return err
}

// GetSnapshot loads the durable snapshot copy, or nil if none exists.
func (r *SessionRepository) GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT snapshot FROM session_snapshots WHERE session_id = $1`, sessionID,
	).Scan(&doc)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap := &engine.Snapshot{}
	if err := json.Unmarshal(doc, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// DeleteSnapshot removes the durable snapshot once a session finalizes.
func (r *SessionRepository) DeleteSnapshot(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM session_snapshots WHERE session_id = $1`, sessionID)
	return err
}

// ─── Violation audit rows ───────────────────────────────────────────

// ViolationRow is one integrity violation bound to its session.
type ViolationRow struct {
	SessionID string            `json:"session_id"`
	Type      engine.SignalType `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
}

// BulkInsertViolations appends violation audit rows with a single CopyFrom.
func (r *SessionRepository) BulkInsertViolations(ctx context.Context, batch []ViolationRow) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, []interface{}{v.SessionID, string(v.Type), v.Timestamp})
	}
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"session_violations"},
		[]string{"session_id", "signal_type", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// InsertViolation is the row-by-row fallback when CopyFrom fails.
func (r *SessionRepository) InsertViolation(ctx context.Context, v ViolationRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_violations (session_id, signal_type, recorded_at)
		 VALUES ($1, $2, $3)`,
		v.SessionID, string(v.Type), v.Timestamp)
	return err
}
