package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certlab/examd/internal/config"
	"github.com/certlab/examd/internal/engine"
)

// ResultQueue implements engine.ResultStore by enqueueing finalized results
// for the result worker, which batch-writes them to Postgres. The RPush is
// the durability handoff: once it succeeds the engine may show results, and a
// failure keeps the session retryable.
type ResultQueue struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewResultQueue creates a ResultQueue.
func NewResultQueue(rdb *redis.Client, log zerolog.Logger) *ResultQueue {
	return &ResultQueue{
		rdb: rdb,
		log: log.With().Str("component", "result_queue").Logger(),
	}
}

// RecordResult enqueues the finalized result.
func (q *ResultQueue) RecordResult(ctx context.Context, sessionID string, result *engine.FinalizedResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		return err
	}
	q.log.Debug().Str("session_id", sessionID).Float64("score", result.Score).Msg("Result enqueued")
	return nil
}
