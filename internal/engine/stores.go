package engine

import "context"

// QuestionFilters narrows a question-batch request.
type QuestionFilters struct {
	ObjectiveIDs  []string
	MinDifficulty int
	MaxDifficulty int
	Count         int
}

// QuestionStore supplies question batches for a session. FetchQuestions must
// return exactly filters.Count questions or fail explicitly; a partial
// result is a configuration error, never silently accepted.
type QuestionStore interface {
	FetchQuestions(ctx context.Context, examID string, filters QuestionFilters) ([]Question, error)

	// FetchByIDs returns the questions for a previously materialized
	// sequence, in the order of ids. Used when resuming from a snapshot.
	FetchByIDs(ctx context.Context, examID string, ids []string) ([]Question, error)
}

// ResultStore receives the finalized result when a session completes.
type ResultStore interface {
	RecordResult(ctx context.Context, sessionID string, result *FinalizedResult) error
}

// PersistenceAdapter loads and saves session snapshots. Save is best-effort:
// the controller reports a failed save as a recoverable warning and the
// in-memory session stays authoritative until the next successful save.
// Load returns (nil, nil) when no snapshot exists.
type PersistenceAdapter interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
}
