package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certlab/examd/internal/config"
	"github.com/certlab/examd/internal/engine"
)

// ViolationPayload is the queue wire format for one integrity violation.
type ViolationPayload struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// ViolationQueue enqueues integrity violations for the violation worker.
// Enqueueing is fire-and-forget: the engine has already recorded the
// violation in session state, so a lost audit row never blocks the candidate.
type ViolationQueue struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewViolationQueue creates a ViolationQueue.
func NewViolationQueue(rdb *redis.Client, log zerolog.Logger) *ViolationQueue {
	return &ViolationQueue{
		rdb: rdb,
		log: log.With().Str("component", "violation_queue").Logger(),
	}
}

// Enqueue pushes one violation onto the audit queue.
func (q *ViolationQueue) Enqueue(ctx context.Context, sessionID string, t engine.SignalType, at time.Time) {
	raw, err := json.Marshal(ViolationPayload{
		SessionID: sessionID,
		Type:      string(t),
		Timestamp: at.Unix(),
	})
	if err != nil {
		return
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, raw).Err(); err != nil {
		q.log.Warn().Err(err).Str("session_id", sessionID).Msg("Violation enqueue failed")
	}
}
