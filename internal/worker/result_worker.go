package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certlab/examd/internal/config"
	"github.com/certlab/examd/internal/engine"
	"github.com/certlab/examd/internal/repository"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker consumes persist_results_queue and finalizes session rows in
// PostgreSQL in batches. After a successful write it clears the sessions'
// snapshots, hot and durable, since a finished session is never resumed.
type ResultWorker struct {
	sessions *repository.SessionRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(sessions *repository.SessionRepository, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("component", "result_worker").Logger(),
	}
}

// Start runs the worker loop with batching. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*engine.FinalizedResult, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res engine.FinalizedResult
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Discarding malformed result payload")
				continue
			}

			batch = append(batch, &res)
		}
	}
}

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*engine.FinalizedResult) {
	if len(batch) == 0 {
		return
	}

	if err := w.sessions.BulkFinalize(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk finalize failed, using fallback")

		for _, res := range batch {
			if err := w.sessions.Finalize(ctx, res); err != nil {
				w.log.Error().Err(err).Str("session_id", res.SessionID).Msg("Finalize failed, requeueing")
				raw, _ := json.Marshal(res)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
		return
	}

	w.clearSnapshots(ctx, batch)
}

// clearSnapshots drops the now-obsolete resumable state for finalized
// sessions.
func (w *ResultWorker) clearSnapshots(ctx context.Context, batch []*engine.FinalizedResult) {
	pipe := w.rdb.Pipeline()
	for _, res := range batch {
		pipe.Del(ctx, config.CacheKey.SessionSnapshotKey(res.SessionID))
	}
	_, _ = pipe.Exec(ctx)

	for _, res := range batch {
		if err := w.sessions.DeleteSnapshot(ctx, res.SessionID); err != nil {
			w.log.Warn().Err(err).Str("session_id", res.SessionID).Msg("Durable snapshot cleanup failed")
		}
	}
}
