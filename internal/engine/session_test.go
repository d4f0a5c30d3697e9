package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── In-memory collaborator fakes ───────────────────────────────────

type fakeQuestionStore struct {
	questions []Question
	err       error
	short     bool // serve one question fewer than requested
}

func (s *fakeQuestionStore) FetchQuestions(_ context.Context, _ string, f QuestionFilters) ([]Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.questions) < f.Count {
		return nil, &ConfigurationError{Reason: "not enough questions in bank"}
	}
	n := f.Count
	if s.short {
		n--
	}
	out := make([]Question, n)
	copy(out, s.questions[:n])
	return out, nil
}

func (s *fakeQuestionStore) FetchByIDs(_ context.Context, _ string, ids []string) ([]Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	byID := make(map[string]Question, len(s.questions))
	for _, q := range s.questions {
		byID[q.ID] = q
	}
	var out []Question
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %s not found", id)
		}
		out = append(out, q)
	}
	return out, nil
}

type fakeResultStore struct {
	recorded []*FinalizedResult
	err      error
}

func (s *fakeResultStore) RecordResult(_ context.Context, _ string, r *FinalizedResult) error {
	if s.err != nil {
		return s.err
	}
	s.recorded = append(s.recorded, r)
	return nil
}

type fakePersistence struct {
	snaps   map[string]*Snapshot
	saveErr error
	loadErr error
	saves   int
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{snaps: make(map[string]*Snapshot)}
}

func (p *fakePersistence) Save(_ context.Context, snap *Snapshot) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saves++
	p.snaps[snap.SessionID] = snap
	return nil
}

func (p *fakePersistence) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return p.snaps[sessionID], nil
}

// ─── Helpers ────────────────────────────────────────────────────────

// threeQuestions builds q1/q2 on objective A and q3 on objective B, each
// single-select with options a..c and correct option "a".
func threeQuestions() []Question {
	qs := make([]Question, 3)
	objectives := []string{"A", "A", "B"}
	for i := range qs {
		qs[i] = Question{
			ID:          fmt.Sprintf("q%d", i+1),
			Prompt:      fmt.Sprintf("prompt %d", i+1),
			Type:        QuestionSingleSelect,
			Difficulty:  3,
			ObjectiveID: objectives[i],
			Explanation: fmt.Sprintf("explanation %d", i+1),
			Options: []Option{
				{ID: "a", Text: "first", Correct: true},
				{ID: "b", Text: "second"},
				{ID: "c", Text: "third"},
			},
		}
	}
	return qs
}

type testRig struct {
	ctrl    *Controller
	store   *fakeQuestionStore
	results *fakeResultStore
	persist *fakePersistence
	events  []Event
}

func newRig(t *testing.T, cfg Config, qs []Question) *testRig {
	t.Helper()
	rig := &testRig{
		store:   &fakeQuestionStore{questions: qs},
		results: &fakeResultStore{},
		persist: newFakePersistence(),
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "sess-1"
	}
	if cfg.ExamID == "" {
		cfg.ExamID = "exam-1"
	}
	if cfg.QuestionCount == 0 {
		cfg.QuestionCount = len(qs)
	}
	if cfg.PassingScore == 0 {
		cfg.PassingScore = 0.7
	}
	rig.ctrl = NewController(cfg, rig.store, rig.results, rig.persist,
		func(ev Event) { rig.events = append(rig.events, ev) }, zerolog.Nop())
	return rig
}

func started(t *testing.T, cfg Config, qs []Question) *testRig {
	t.Helper()
	rig := newRig(t, cfg, qs)
	require.NoError(t, rig.ctrl.Start(context.Background()))
	return rig
}

func (r *testRig) eventTypes() []EventType {
	var out []EventType
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// ─── Start ──────────────────────────────────────────────────────────

func TestStart_RejectsNonPositiveQuestionCount(t *testing.T) {
	rig := newRig(t, Config{Mode: ModePractice, QuestionCount: -1}, threeQuestions())

	var cfgErr *ConfigurationError
	require.ErrorAs(t, rig.ctrl.Start(context.Background()), &cfgErr)
}

func TestStart_TimedRequiresTimeLimit(t *testing.T) {
	rig := newRig(t, Config{Mode: ModeTimed}, threeQuestions())

	var cfgErr *ConfigurationError
	require.ErrorAs(t, rig.ctrl.Start(context.Background()), &cfgErr)
	assert.Equal(t, StatusInstructions, rig.ctrl.Status())
}

func TestStart_PartialBatchIsConfigurationError(t *testing.T) {
	rig := newRig(t, Config{Mode: ModePractice}, threeQuestions())
	rig.store.short = true

	var cfgErr *ConfigurationError
	require.ErrorAs(t, rig.ctrl.Start(context.Background()), &cfgErr)
	assert.Equal(t, StatusInstructions, rig.ctrl.Status())
}

func TestStart_StoreFailureIsStoreUnavailable(t *testing.T) {
	rig := newRig(t, Config{Mode: ModePractice}, threeQuestions())
	rig.store.err = errors.New("connection refused")

	var storeErr *StoreUnavailableError
	require.ErrorAs(t, rig.ctrl.Start(context.Background()), &storeErr)
}

func TestStart_Twice(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())

	var opErr *OperationForbiddenError
	require.ErrorAs(t, rig.ctrl.Start(context.Background()), &opErr)
}

func TestStart_ShuffleSeedIsDeterministic(t *testing.T) {
	cfg := Config{Mode: ModePractice, Shuffle: true, ShuffleSeed: 42}
	a := started(t, cfg, threeQuestions())
	b := started(t, cfg, threeQuestions())

	assert.Equal(t, a.ctrl.Snapshot().QuestionIDs, b.ctrl.Snapshot().QuestionIDs)
}

// ─── Answering ──────────────────────────────────────────────────────

func TestSubmitAnswer_PracticeFeedback(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())

	fb, err := rig.ctrl.SubmitAnswer(context.Background(), "q1", []string{"a"})
	require.NoError(t, err)
	require.NotNil(t, fb)
	assert.True(t, fb.Correct)
	assert.Equal(t, []string{"a"}, fb.CorrectOptionIDs)
	assert.Equal(t, "explanation 1", fb.Explanation)
}

func TestSubmitAnswer_TimedWithholdsFeedback(t *testing.T) {
	rig := started(t, Config{Mode: ModeTimed, TimeLimit: time.Minute}, threeQuestions())

	fb, err := rig.ctrl.SubmitAnswer(context.Background(), "q1", []string{"a"})
	require.NoError(t, err)
	assert.Nil(t, fb)
}

func TestSubmitAnswer_InvalidSelectionsLeaveStateUnchanged(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())

	cases := [][]string{
		{},           // empty
		{"z"},        // unknown option
		{"a", "b"},   // single-select with two options
		{"q1", "q1"}, // garbage
	}
	for _, sel := range cases {
		_, err := rig.ctrl.SubmitAnswer(context.Background(), "q1", sel)
		var invErr *InvalidAnswerError
		require.ErrorAs(t, err, &invErr, "selection %v", sel)
	}

	assert.Empty(t, rig.ctrl.Snapshot().Answers)
	assert.Equal(t, 0, rig.ctrl.Stats().AnsweredCount)
}

func TestSubmitAnswer_RejectsNonCurrentQuestion(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())

	_, err := rig.ctrl.SubmitAnswer(context.Background(), "q3", []string{"a"})
	var invErr *InvalidAnswerError
	require.ErrorAs(t, err, &invErr)
}

func TestSubmitAnswer_OverwriteWhileOnQuestion(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())
	ctx := context.Background()

	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"b"})
	require.NoError(t, err)
	_, err = rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, rig.ctrl.Snapshot().Answers["q1"])
	// The amended answer must not double count against the objective.
	assert.Equal(t, 1.0, rig.ctrl.Stats().Readiness)
}

// ─── Navigation ─────────────────────────────────────────────────────

func TestAdvance_FreeNavigationInPractice(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())
	ctx := context.Background()

	require.NoError(t, rig.ctrl.Advance(ctx, 2))
	require.NoError(t, rig.ctrl.Advance(ctx, 0))

	q, pos := rig.ctrl.CurrentQuestion()
	assert.Equal(t, 0, pos)
	assert.Equal(t, "q1", q.ID)
}

func TestAdvance_FormalForwardOnly(t *testing.T) {
	rig := started(t, Config{Mode: ModeFormal, TimeLimit: time.Hour}, threeQuestions())
	ctx := context.Background()

	require.NoError(t, rig.ctrl.Advance(ctx, 1))

	err := rig.ctrl.Advance(ctx, 0)
	var navErr *NavigationForbiddenError
	require.ErrorAs(t, err, &navErr)

	_, pos := rig.ctrl.CurrentQuestion()
	assert.Equal(t, 1, pos, "failed navigation must not move the position")
}

func TestAdvance_PastLastQuestionIsNoop(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())
	ctx := context.Background()

	require.NoError(t, rig.ctrl.Advance(ctx, 2))
	require.NoError(t, rig.ctrl.Advance(ctx, 3))

	_, pos := rig.ctrl.CurrentQuestion()
	assert.Equal(t, 2, pos)
	assert.Equal(t, StatusActive, rig.ctrl.Status())
}

func TestAdvance_NegativeTargetForbidden(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())

	var navErr *NavigationForbiddenError
	require.ErrorAs(t, rig.ctrl.Advance(context.Background(), -1), &navErr)
}

// ─── Flagging ───────────────────────────────────────────────────────

func TestFlag_SetSemantics(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())

	require.NoError(t, rig.ctrl.Flag())
	require.NoError(t, rig.ctrl.Flag()) // second flag is a no-op

	snap := rig.ctrl.Snapshot()
	assert.Equal(t, []string{"q1"}, snap.Flagged)

	require.NoError(t, rig.ctrl.Unflag())
	assert.Empty(t, rig.ctrl.Snapshot().Flagged)
}

// ─── Pause / resume ─────────────────────────────────────────────────

func TestPause_ForbiddenInFormal(t *testing.T) {
	rig := started(t, Config{Mode: ModeFormal, TimeLimit: time.Hour}, threeQuestions())

	var opErr *OperationForbiddenError
	require.ErrorAs(t, rig.ctrl.Pause(context.Background()), &opErr)
}

func TestPauseResume_FreezesRemainingTime(t *testing.T) {
	rig := started(t, Config{Mode: ModeTimed, TimeLimit: 10 * time.Minute}, threeQuestions())
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		rig.ctrl.AdvanceClock(ctx, time.Second)
	}
	require.NoError(t, rig.ctrl.Pause(ctx))
	require.NoError(t, rig.ctrl.Pause(ctx)) // idempotent

	for i := 0; i < 5; i++ {
		rig.ctrl.AdvanceClock(ctx, time.Second)
	}

	require.NoError(t, rig.ctrl.Resume())
	for i := 0; i < 60; i++ {
		rig.ctrl.AdvanceClock(ctx, time.Second)
	}

	// 10 minutes minus 2 active minutes minus 1 active minute; the 5
	// paused seconds never count.
	assert.Equal(t, 10*time.Minute-3*time.Minute, rig.ctrl.TimeRemaining())
}

// ─── Expiry ─────────────────────────────────────────────────────────

func TestExpiry_OneMinuteNoAction(t *testing.T) {
	rig := started(t, Config{Mode: ModeTimed, TimeLimit: time.Minute}, threeQuestions())
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		rig.ctrl.AdvanceClock(ctx, time.Second)
	}

	assert.Equal(t, StatusResults, rig.ctrl.Status())
	assert.Contains(t, rig.eventTypes(), EventExpired)

	res := rig.ctrl.Result()
	require.NotNil(t, res)
	assert.Equal(t, 3, res.SkippedCount)
	assert.Equal(t, 0, res.CorrectCount)
	assert.Zero(t, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, res.TotalQuestions,
		res.CorrectCount+res.IncorrectCount+res.SkippedCount)
}

func TestExpiry_VisibleTransitionBeforeSubmitting(t *testing.T) {
	rig := started(t, Config{Mode: ModeTimed, TimeLimit: 2 * time.Second}, threeQuestions())
	rig.ctrl.AdvanceClock(context.Background(), 2*time.Second)

	var statuses []Status
	for _, ev := range rig.events {
		if ev.Type == EventStateChanged {
			statuses = append(statuses, ev.Status)
		}
	}
	assert.Equal(t, []Status{StatusActive, StatusTimeExpired, StatusSubmitting, StatusResults}, statuses)
}

func TestExpiry_AnswerRace(t *testing.T) {
	rig := started(t, Config{Mode: ModeTimed, TimeLimit: time.Minute}, threeQuestions())
	ctx := context.Background()

	rig.ctrl.AdvanceClock(ctx, 59*time.Second)

	// Logically earlier than the zero-crossing tick: accepted.
	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"})
	require.NoError(t, err)

	rig.ctrl.AdvanceClock(ctx, time.Second)

	// Logically later: rejected, session already expired.
	_, err = rig.ctrl.SubmitAnswer(ctx, "q1", []string{"b"})
	var expErr *SessionExpiredError
	require.ErrorAs(t, err, &expErr)

	res := rig.ctrl.Result()
	require.NotNil(t, res)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 2, res.SkippedCount)
}

func TestExpiry_TimeWarningsFireOnce(t *testing.T) {
	rig := started(t, Config{Mode: ModeTimed, TimeLimit: 100 * time.Second}, threeQuestions())
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		rig.ctrl.AdvanceClock(ctx, time.Second)
	}

	var fractions []float64
	for _, ev := range rig.events {
		if ev.Type == EventTimeWarning {
			fractions = append(fractions, ev.Fraction)
		}
	}
	assert.Equal(t, []float64{0.5, 0.1, 0.05}, fractions)
}

// ─── Finish and results ─────────────────────────────────────────────

func TestFinish_PracticeScenario(t *testing.T) {
	cfg := Config{
		Mode:             ModePractice,
		PassingScore:     0.7,
		ObjectiveWeights: map[string]float64{"A": 1, "B": 1},
	}
	rig := started(t, cfg, threeQuestions())
	ctx := context.Background()

	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"}) // correct
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Advance(ctx, 1))
	_, err = rig.ctrl.SubmitAnswer(ctx, "q2", []string{"b"}) // incorrect
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Advance(ctx, 2))
	_, err = rig.ctrl.SubmitAnswer(ctx, "q3", []string{"a"}) // correct
	require.NoError(t, err)

	require.NoError(t, rig.ctrl.Finish(ctx))

	res := rig.ctrl.Result()
	require.NotNil(t, res)
	assert.InDelta(t, 2.0/3.0, res.Score, 1e-9)
	assert.Equal(t, 2, res.CorrectCount)
	assert.Equal(t, 1, res.IncorrectCount)
	assert.Equal(t, 0, res.SkippedCount)
	assert.Equal(t, 0.5, res.Breakdown["A"].Accuracy())
	assert.Equal(t, 1.0, res.Breakdown["B"].Accuracy())
	assert.InDelta(t, 0.75, res.Readiness, 1e-9)
	assert.False(t, res.Passed)

	require.Len(t, rig.results.recorded, 1)
	assert.Equal(t, res, rig.results.recorded[0])
}

func TestFinish_UnansweredCountAsIncorrect(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())
	ctx := context.Background()

	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Finish(ctx))

	res := rig.ctrl.Result()
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 0, res.IncorrectCount)
	assert.Equal(t, 2, res.SkippedCount)
	assert.Equal(t, res.TotalQuestions,
		res.CorrectCount+res.IncorrectCount+res.SkippedCount)
	// The skipped questions count against their objectives.
	assert.Equal(t, ObjectiveScore{Correct: 1, Total: 2}, res.Breakdown["A"])
	assert.Equal(t, ObjectiveScore{Correct: 0, Total: 1}, res.Breakdown["B"])
	assert.Equal(t, OutcomeSkipped, res.Outcomes["q3"])
}

func TestFinish_StoreFailureLeavesSessionRetryable(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())
	ctx := context.Background()

	rig.results.err = errors.New("result store down")
	var storeErr *StoreUnavailableError
	require.ErrorAs(t, rig.ctrl.Finish(ctx), &storeErr)
	assert.Equal(t, StatusActive, rig.ctrl.Status())
	assert.Nil(t, rig.ctrl.Result())

	rig.results.err = nil
	require.NoError(t, rig.ctrl.Finish(ctx))
	assert.Equal(t, StatusResults, rig.ctrl.Status())
}

// ─── Review ─────────────────────────────────────────────────────────

func TestReview_BackwardNavigationAllowedInAnyMode(t *testing.T) {
	rig := started(t, Config{Mode: ModeFormal, TimeLimit: time.Hour}, threeQuestions())
	ctx := context.Background()

	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"b"})
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Finish(ctx))
	require.NoError(t, rig.ctrl.EnterReview())

	entry, err := rig.ctrl.ReviewEntryAt(0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIncorrect, entry.Outcome)
	assert.Equal(t, []string{"b"}, entry.Submitted)
	assert.Equal(t, []string{"a"}, entry.CorrectOptionIDs)
	assert.Equal(t, "explanation 1", entry.Explanation)

	skippedEntry, err := rig.ctrl.ReviewEntryAt(2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, skippedEntry.Outcome)
	assert.Empty(t, skippedEntry.Submitted)
}

func TestReview_OnlyFromResults(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())

	var opErr *OperationForbiddenError
	require.ErrorAs(t, rig.ctrl.EnterReview(), &opErr)
}

// ─── Integrity ──────────────────────────────────────────────────────

func TestIntegrity_FormalRecordsViolations(t *testing.T) {
	rig := started(t, Config{Mode: ModeFormal, TimeLimit: time.Hour}, threeQuestions())
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, rig.ctrl.RecordSignal(SignalWindowBlur, now))
	require.NoError(t, rig.ctrl.RecordSignal(SignalDevtoolsOpen, now.Add(time.Second)))

	vs := rig.ctrl.Violations()
	require.Len(t, vs, 2)
	assert.Equal(t, SignalWindowBlur, vs[0].Type)

	// The clock keeps running; violations never interrupt the timer.
	rig.ctrl.AdvanceClock(ctx, time.Second)
	assert.Equal(t, time.Second, rig.ctrl.TimeElapsed())

	require.NoError(t, rig.ctrl.Finish(ctx))
	assert.Equal(t, 2, rig.ctrl.Result().ViolationCount)
}

func TestIntegrity_RejectedOutsideFormal(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())

	var opErr *OperationForbiddenError
	require.ErrorAs(t, rig.ctrl.RecordSignal(SignalWindowBlur, time.Now()), &opErr)
}

// ─── Persistence ────────────────────────────────────────────────────

func TestCheckpoint_SaveFailureIsNonFatal(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())
	ctx := context.Background()

	rig.persist.saveErr = errors.New("redis down")
	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"})
	require.NoError(t, err, "a failed save must not fail the submission")

	assert.Contains(t, rig.eventTypes(), EventSaveWarning)
	assert.Equal(t, []string{"a"}, rig.ctrl.Snapshot().Answers["q1"])
}

func TestCheckpoint_SavedAfterAnswerAdvanceAndPause(t *testing.T) {
	rig := started(t, Config{Mode: ModeTimed, TimeLimit: time.Minute}, threeQuestions())
	ctx := context.Background()

	base := rig.persist.saves // Start checkpoints once

	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Advance(ctx, 1))
	require.NoError(t, rig.ctrl.Pause(ctx))

	assert.Equal(t, base+3, rig.persist.saves)
}
