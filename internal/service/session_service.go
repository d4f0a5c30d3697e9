package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certlab/examd/internal/config"
	"github.com/certlab/examd/internal/engine"
	"github.com/certlab/examd/internal/model"
	"github.com/certlab/examd/internal/repository"
	"github.com/certlab/examd/internal/store"
)

// Session service errors.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotSessionOwner  = errors.New("session belongs to another candidate")
	ErrSessionBusy      = errors.New("session is already live on this server")
	ErrExamNotAvailable = errors.New("exam is not available")
)

// idleSessionTTL is how long a finished session's controller stays in memory
// for result and review access before the sweeper drops it.
const idleSessionTTL = 30 * time.Minute

// liveSession binds a running controller to its owner and event pump.
type liveSession struct {
	ctrl        *engine.Controller
	candidateID string
	cancel      context.CancelFunc
	events      chan engine.Event

	mu          sync.Mutex
	subscribers map[chan engine.Event]struct{}
	lastTouched time.Time
}

func (ls *liveSession) touch() {
	ls.mu.Lock()
	ls.lastTouched = time.Now()
	ls.mu.Unlock()
}

// SessionService orchestrates live exam sessions. Each session gets exactly
// one in-process controller; a resume request for a session that is already
// live is rejected rather than racing two controllers against each other.
// Cross-server duplicates resolve through the snapshot store's
// last-writer-wins semantics.
type SessionService struct {
	cfg        *config.Config
	exams      *repository.ExamRepository
	sessions   *repository.SessionRepository
	questions  *repository.QuestionRepository
	snapshots  *store.SnapshotStore
	results    *store.ResultQueue
	violations *store.ViolationQueue
	rdb        *redis.Client
	log        zerolog.Logger

	mu   sync.Mutex
	live map[string]*liveSession
}

// NewSessionService creates a SessionService and starts its idle sweeper.
func NewSessionService(
	cfg *config.Config,
	exams *repository.ExamRepository,
	sessions *repository.SessionRepository,
	questions *repository.QuestionRepository,
	snapshots *store.SnapshotStore,
	results *store.ResultQueue,
	violations *store.ViolationQueue,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:        cfg,
		exams:      exams,
		sessions:   sessions,
		questions:  questions,
		snapshots:  snapshots,
		results:    results,
		violations: violations,
		rdb:        rdb,
		log:        log.With().Str("component", "session_service").Logger(),
		live:       make(map[string]*liveSession),
	}
}

// ─── Lifecycle ──────────────────────────────────────────────────────

// Start starts a new session, or resumes the one named by req.SessionID if a
// resumable snapshot exists. The returned view reflects the session's state
// after activation.
func (s *SessionService) Start(ctx context.Context, candidateID string, req *model.StartSessionRequest) (*model.SessionView, error) {
	examID, err := uuid.Parse(req.ExamID)
	if err != nil {
		return nil, ErrExamNotAvailable
	}
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil || exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	sessionID := req.SessionID
	resume := sessionID != ""
	if resume {
		rec, err := s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return nil, ErrSessionNotFound
		}
		if rec.CandidateID != candidateID {
			return nil, ErrNotSessionOwner
		}
	} else {
		sessionID = uuid.New().String()
	}

	cfg := engine.Config{
		SessionID:     sessionID,
		ExamID:        req.ExamID,
		Mode:          engine.Mode(req.Mode),
		QuestionCount: req.QuestionCount,
		Shuffle:       req.Shuffle || exam.ShuffleQuestions,
		Filters: engine.QuestionFilters{
			ObjectiveIDs:  req.ObjectiveIDs,
			MinDifficulty: req.MinDifficulty,
			MaxDifficulty: req.MaxDifficulty,
		},
		PassingScore:     exam.PassingScore,
		ObjectiveWeights: exam.ObjectiveWeights,
	}
	if cfg.QuestionCount == 0 {
		cfg.QuestionCount = exam.QuestionCount
	}
	if cfg.Mode != engine.ModePractice {
		cfg.TimeLimit = time.Duration(exam.DurationMinutes) * time.Minute
	}

	s.mu.Lock()
	if _, exists := s.live[sessionID]; exists {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}

	ls := &liveSession{
		candidateID: candidateID,
		events:      make(chan engine.Event, 64),
		subscribers: make(map[chan engine.Event]struct{}),
		lastTouched: time.Now(),
	}
	ls.ctrl = engine.NewController(cfg, s.questions, s.results, s.snapshots, s.observerFor(ls), s.log)
	s.live[sessionID] = ls
	s.mu.Unlock()

	if err := ls.ctrl.Start(ctx); err != nil {
		s.drop(sessionID)
		return nil, err
	}

	if !resume {
		rec := &model.SessionRecord{
			SessionID:   sessionID,
			ExamID:      req.ExamID,
			CandidateID: candidateID,
			Mode:        req.Mode,
			StartedAt:   time.Now(),
		}
		if err := s.sessions.Create(ctx, rec); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID).Msg("Session record insert failed")
		}
	}

	key := config.CacheKey.CandidateActiveSessionKey(candidateID)
	if err := s.rdb.Set(ctx, key, sessionID, s.cfg.SnapshotTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Active session marker update failed")
	}

	driverCtx, cancel := context.WithCancel(context.Background())
	ls.cancel = cancel
	go s.runClock(driverCtx, ls)
	go s.pumpEvents(driverCtx, sessionID, ls)

	s.log.Info().
		Str("session_id", sessionID).
		Str("candidate_id", candidateID).
		Str("mode", req.Mode).
		Bool("resumed", resume).
		Msg("Session live")
	return s.viewOf(ls), nil
}

// Close releases a session's in-memory controller. Active sessions
// checkpoint first so they stay resumable.
func (s *SessionService) Close(ctx context.Context, candidateID, sessionID string) error {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return err
	}
	if snap := ls.ctrl.Snapshot(); snap.Status == engine.StatusActive || snap.Status == engine.StatusPaused {
		if err := s.snapshots.Save(ctx, snap); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Final checkpoint on close failed")
		}
	}
	s.drop(sessionID)
	return nil
}

// ─── Candidate operations ───────────────────────────────────────────

// SubmitAnswer answers the current question.
func (s *SessionService) SubmitAnswer(ctx context.Context, candidateID, sessionID string, req *model.SubmitAnswerRequest) (*engine.Feedback, error) {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	ls.touch()
	return ls.ctrl.SubmitAnswer(ctx, req.QuestionID, req.Selection)
}

// Advance moves to another question.
func (s *SessionService) Advance(ctx context.Context, candidateID, sessionID string, target int) (*model.SessionView, error) {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	ls.touch()
	if err := ls.ctrl.Advance(ctx, target); err != nil {
		return nil, err
	}
	return s.viewOf(ls), nil
}

// Flag marks the current question for review.
func (s *SessionService) Flag(candidateID, sessionID string, flagged bool) error {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return err
	}
	ls.touch()
	if flagged {
		return ls.ctrl.Flag()
	}
	return ls.ctrl.Unflag()
}

// Pause freezes the session clock.
func (s *SessionService) Pause(ctx context.Context, candidateID, sessionID string) error {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return err
	}
	ls.touch()
	return ls.ctrl.Pause(ctx)
}

// Resume unfreezes the session clock.
func (s *SessionService) Resume(candidateID, sessionID string) error {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return err
	}
	ls.touch()
	return ls.ctrl.Resume()
}

// Finish submits the session for scoring.
func (s *SessionService) Finish(ctx context.Context, candidateID, sessionID string) (*engine.FinalizedResult, error) {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	ls.touch()
	if err := ls.ctrl.Finish(ctx); err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, config.CacheKey.CandidateActiveSessionKey(candidateID))
	return ls.ctrl.Result(), nil
}

// RecordViolation reports an integrity signal on a formal session and queues
// the audit row.
func (s *SessionService) RecordViolation(ctx context.Context, candidateID, sessionID string, signal engine.SignalType) error {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return err
	}
	ls.touch()
	now := time.Now()
	if err := ls.ctrl.RecordSignal(signal, now); err != nil {
		return err
	}
	s.violations.Enqueue(ctx, sessionID, signal, now)
	return nil
}

// EnterReview switches a completed session to review.
func (s *SessionService) EnterReview(candidateID, sessionID string) error {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return err
	}
	ls.touch()
	return ls.ctrl.EnterReview()
}

// ReviewEntry returns the review view of one question.
func (s *SessionService) ReviewEntry(candidateID, sessionID string, position int) (*engine.ReviewEntry, error) {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	ls.touch()
	return ls.ctrl.ReviewEntryAt(position)
}

// ─── Read side ──────────────────────────────────────────────────────

// View returns the candidate-facing state of a live session.
func (s *SessionService) View(candidateID, sessionID string) (*model.SessionView, error) {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.viewOf(ls), nil
}

// Result returns the finalized result of a session, live or historical.
func (s *SessionService) Result(ctx context.Context, candidateID, sessionID string) (*engine.FinalizedResult, error) {
	if ls, err := s.owned(candidateID, sessionID); err == nil {
		if res := ls.ctrl.Result(); res != nil {
			return res, nil
		}
		return nil, &engine.OperationForbiddenError{Op: "result", Mode: ls.ctrl.Mode(), Status: ls.ctrl.Status()}
	}

	rec, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if rec.CandidateID != candidateID {
		return nil, ErrNotSessionOwner
	}
	res, err := s.sessions.GetResult(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	if res == nil {
		return nil, ErrSessionNotFound
	}
	return res, nil
}

// History lists a candidate's past sessions.
func (s *SessionService) History(ctx context.Context, candidateID string) ([]model.SessionRecord, error) {
	return s.sessions.ListByCandidate(ctx, candidateID)
}

// Subscribe attaches a listener to a live session's event stream. The
// returned cancel func must be called when the listener goes away.
func (s *SessionService) Subscribe(candidateID, sessionID string) (<-chan engine.Event, func(), error) {
	ls, err := s.owned(candidateID, sessionID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan engine.Event, 16)
	ls.mu.Lock()
	ls.subscribers[ch] = struct{}{}
	ls.mu.Unlock()

	cancel := func() {
		ls.mu.Lock()
		delete(ls.subscribers, ch)
		ls.mu.Unlock()
	}
	return ch, cancel, nil
}

// ─── Internals ──────────────────────────────────────────────────────

func (s *SessionService) owned(candidateID, sessionID string) (*liveSession, error) {
	s.mu.Lock()
	ls, ok := s.live[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if ls.candidateID != candidateID {
		return nil, ErrNotSessionOwner
	}
	return ls, nil
}

func (s *SessionService) drop(sessionID string) {
	s.mu.Lock()
	ls, ok := s.live[sessionID]
	if ok {
		delete(s.live, sessionID)
	}
	s.mu.Unlock()
	if ok && ls.cancel != nil {
		ls.cancel()
	}
}

// observerFor builds the controller observer. It only forwards into the
// session's buffered event channel; all I/O happens on the pump goroutine so
// the controller's event loop never blocks on Redis or a slow client.
func (s *SessionService) observerFor(ls *liveSession) engine.Observer {
	return func(ev engine.Event) {
		select {
		case ls.events <- ev:
		default:
			s.log.Warn().Str("session_id", ev.SessionID).Str("type", string(ev.Type)).Msg("Event buffer full, dropping")
		}
	}
}

// runClock feeds observed wall-clock deltas into the controller. Using the
// measured delta instead of a fixed increment keeps the session clock honest
// across missed ticks.
func (s *SessionService) runClock(ctx context.Context, ls *liveSession) {
	ticker := time.NewTicker(s.cfg.ClockTick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			ls.ctrl.AdvanceClock(ctx, now.Sub(last))
			last = now

			switch ls.ctrl.Status() {
			case engine.StatusResults, engine.StatusReview:
				return
			}
		}
	}
}

// pumpEvents fans controller events out to subscribers and publishes them on
// the session's Redis channel for cross-process observers.
func (s *SessionService) pumpEvents(ctx context.Context, sessionID string, ls *liveSession) {
	channel := config.CacheKey.SessionEventChannel(sessionID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ls.events:
			ls.mu.Lock()
			for ch := range ls.subscribers {
				select {
				case ch <- ev:
				default:
				}
			}
			ls.mu.Unlock()

			if raw, err := json.Marshal(eventEnvelope(ev)); err == nil {
				if err := s.rdb.Publish(ctx, channel, raw).Err(); err != nil {
					s.log.Debug().Err(err).Msg("Event publish failed")
				}
			}
		}
	}
}

// eventEnvelope is the wire shape of a published lifecycle event.
func eventEnvelope(ev engine.Event) map[string]any {
	env := map[string]any{
		"type":       string(ev.Type),
		"session_id": ev.SessionID,
		"status":     string(ev.Status),
	}
	if ev.Type == engine.EventTimeWarning {
		env["fraction"] = ev.Fraction
	}
	if ev.Signal != "" {
		env["signal"] = string(ev.Signal)
	}
	return env
}

// SweepIdle drops finished or abandoned controllers that have not been
// touched within idleSessionTTL. Called periodically from main.
func (s *SessionService) SweepIdle(ctx context.Context) {
	s.mu.Lock()
	var stale []string
	for id, ls := range s.live {
		ls.mu.Lock()
		idle := time.Since(ls.lastTouched)
		ls.mu.Unlock()
		if idle > idleSessionTTL {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		s.mu.Lock()
		ls := s.live[id]
		s.mu.Unlock()
		if ls == nil {
			continue
		}
		if snap := ls.ctrl.Snapshot(); snap.Status == engine.StatusActive || snap.Status == engine.StatusPaused {
			if err := s.snapshots.Save(ctx, snap); err != nil {
				s.log.Warn().Err(err).Str("session_id", id).Msg("Sweep checkpoint failed")
			}
		}
		s.drop(id)
		s.log.Info().Str("session_id", id).Msg("Idle session released")
	}
}

// CheckpointAll saves every resumable live session and releases its
// controller. Called on shutdown so an in-flight exam survives a restart.
func (s *SessionService) CheckpointAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.mu.Lock()
		ls := s.live[id]
		s.mu.Unlock()
		if ls == nil {
			continue
		}
		if snap := ls.ctrl.Snapshot(); snap.Status == engine.StatusActive || snap.Status == engine.StatusPaused {
			if err := s.snapshots.Save(ctx, snap); err != nil {
				s.log.Error().Err(err).Str("session_id", id).Msg("Shutdown checkpoint failed")
			}
		}
		s.drop(id)
	}
}

// viewOf builds the candidate-facing view from controller state.
func (s *SessionService) viewOf(ls *liveSession) *model.SessionView {
	snap := ls.ctrl.Snapshot()
	stats := ls.ctrl.Stats()

	view := &model.SessionView{
		SessionID:            snap.SessionID,
		ExamID:               snap.ExamID,
		Mode:                 string(snap.Mode),
		Status:               string(snap.Status),
		Position:             snap.CurrentPosition,
		TotalQuestions:       stats.TotalQuestions,
		RemainingTimeSeconds: snap.RemainingTimeSeconds,
		ElapsedTimeSeconds:   int(ls.ctrl.TimeElapsed().Seconds()),
		Stats:                stats,
	}

	if q, pos := ls.ctrl.CurrentQuestion(); q != nil {
		qv := &model.QuestionView{
			ID:         q.ID,
			Position:   pos,
			Prompt:     q.Prompt,
			Type:       string(q.Type),
			Difficulty: q.Difficulty,
			Selection:  snap.Answers[q.ID],
		}
		for _, opt := range q.Options {
			qv.Options = append(qv.Options, model.OptionView{ID: opt.ID, Text: opt.Text})
		}
		for _, fid := range snap.Flagged {
			if fid == q.ID {
				qv.Flagged = true
			}
		}
		view.Question = qv
	}
	return view
}
