package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key for a candidate's login session
func (r *CacheKeyStruct) CandidateSessionKey(candidateID string) string {
	return fmt.Sprintf("login:%s", candidateID)
}

// SessionSnapshotKey returns the cache key for a session's resumable snapshot
func (r *CacheKeyStruct) SessionSnapshotKey(sessionID string) string {
	return fmt.Sprintf("session:%s:snapshot", sessionID)
}

// CandidateActiveSessionKey returns the cache key for a candidate's currently active session
func (r *CacheKeyStruct) CandidateActiveSessionKey(candidateID string) string {
	return fmt.Sprintf("candidate:%s:active_session", candidateID)
}

// ExamPayloadKey returns the cache key for an exam's prewarmed payload
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// SessionEventChannel returns the Redis PubSub channel name for a session's lifecycle events
func (r *CacheKeyStruct) SessionEventChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:events", sessionID)
}

var CacheKey = NewCacheKeyStruct()
