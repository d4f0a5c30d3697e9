package store

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

// SnapshotStore implements engine.PersistenceAdapter on Redis with a
// Postgres fallback for reads.
//
// Writes go to Redis twice: a plain SET on the session's snapshot key, whose
// last-writer-wins semantics resolve concurrent saves, and an RPush onto the
// durable-writer queue drained by the snapshot worker. Reads prefer the hot
// Redis copy and fall back to the durable row when Redis has evicted it.
type SnapshotStore struct {
	rdb      *redis.Client
	sessions *repository.SessionRepository
	ttl      time.Duration
	log      zerolog.Logger
}

// NewSnapshotStore creates a SnapshotStore. ttl bounds how long an abandoned
// snapshot stays hot in Redis.
func NewSnapshotStore(rdb *redis.Client, sessions *repository.SessionRepository, ttl time.Duration, log zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{
		rdb:      rdb,
		sessions: sessions,
		ttl:      ttl,
		log:      log.With().Str("component", "snapshot_store").Logger(),
	}
}

// Save writes the snapshot to the hot key and enqueues it for the durable
// writer. The SET must succeed; the enqueue is best-effort because the next
// checkpoint re-enqueues the newer state anyway.
func (s *SnapshotStore) Save(ctx context.Context, snap *engine.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	key := config.CacheKey.SessionSnapshotKey(snap.SessionID)
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return err
	}

	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistSnapshotsQueue, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", snap.SessionID).Msg("Durable snapshot enqueue failed")
	}
	return nil
}

// Load returns the latest snapshot for a session, or nil if none exists in
// either store.
func (s *SnapshotStore) Load(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	key := config.CacheKey.SessionSnapshotKey(sessionID)
	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == redis.Nil:
		return s.loadDurable(ctx, sessionID)
	case err != nil:
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Redis snapshot read failed, trying durable copy")
		return s.loadDurable(ctx, sessionID)
	}

	snap := &engine.Snapshot{}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Delete drops the hot snapshot key once a session finalizes.
func (s *SnapshotStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, config.CacheKey.SessionSnapshotKey(sessionID)).Err()
}

func (s *SnapshotStore) loadDurable(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	snap, err := s.sessions.GetSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		s.log.Info().Str("session_id", sessionID).Msg("Snapshot recovered from durable store")
	}
	return snap, nil
}
