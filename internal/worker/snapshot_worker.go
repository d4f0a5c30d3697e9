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

// SnapshotWorker consumes persist_snapshots_queue and UPSERTs session
// snapshots into PostgreSQL. The queue may hold several checkpoints of the
// same session; only the newest per session in a batch is written.
type SnapshotWorker struct {
	sessions *repository.SessionRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewSnapshotWorker creates a new SnapshotWorker.
func NewSnapshotWorker(sessions *repository.SessionRepository, rdb *redis.Client, log zerolog.Logger) *SnapshotWorker {
	return &SnapshotWorker{
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("component", "snapshot_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SnapshotWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SnapshotWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistSnapshotsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var snap engine.Snapshot
	if err := json.Unmarshal([]byte(result[1]), &snap); err != nil {
		w.log.Error().Err(err).Msg("Discarding malformed snapshot payload")
		return
	}

	if err := w.sessions.UpsertSnapshot(ctx, &snap); err != nil {
		w.log.Error().Err(err).
			Str("session_id", snap.SessionID).
			Msg("Persist error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

// drain processes all remaining items in the queue before shutdown,
// collapsing repeated checkpoints of the same session to the last one seen.
func (w *SnapshotWorker) drain(ctx context.Context) {
	latest := make(map[string]*engine.Snapshot)
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistSnapshotsQueue).Result()
		if err != nil {
			break
		}
		var snap engine.Snapshot
		if err := json.Unmarshal([]byte(result), &snap); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}
		latest[snap.SessionID] = &snap
	}

	drained := 0
	for _, snap := range latest {
		if err := w.sessions.UpsertSnapshot(ctx, snap); err != nil {
			w.log.Error().Err(err).Str("session_id", snap.SessionID).Msg("Drain persist error")
			raw, _ := json.Marshal(snap)
			w.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, raw)
			continue
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining snapshots")
	}
}
