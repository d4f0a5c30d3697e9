package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	snap := &Snapshot{
		SessionID:       "sess-9",
		ExamID:          "exam-net",
		Mode:            ModeFormal,
		QuestionIDs:     []string{"q2", "q1", "q3"},
		CurrentPosition: 1,
		Answers: map[string][]string{
			"q2": {"a", "c"},
			"q1": {"b"},
		},
		TimePerQuestion:      map[string]int{"q2": 40, "q1": 12},
		Flagged:              []string{"q1"},
		RemainingTimeSeconds: 1750,
		Status:               StatusActive,
		Violations: []Violation{
			{Type: SignalWindowBlur, Timestamp: time.Unix(1757000000, 0).UTC()},
			{Type: SignalTabHidden, Timestamp: time.Unix(1757000090, 0).UTC()},
		},
	}

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, *snap, got)
}

func TestSnapshot_FieldNamesAreStable(t *testing.T) {
	rig := started(t, Config{Mode: ModeTimed, TimeLimit: time.Minute}, threeQuestions())

	raw, err := json.Marshal(rig.ctrl.Snapshot())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, key := range []string{
		"sessionId", "examId", "mode", "questionIds", "currentPosition",
		"answers", "timePerQuestion", "flagged", "remainingTimeSeconds",
		"status", "violations",
	} {
		assert.Contains(t, m, key)
	}
	assert.Len(t, m, 11, "unexpected extra snapshot field")
}

func TestSnapshot_BeforeStart(t *testing.T) {
	rig := newRig(t, Config{Mode: ModeTimed, TimeLimit: 10 * time.Minute}, threeQuestions())

	// No Start yet; the clock does not exist and no questions are loaded.
	snap := rig.ctrl.Snapshot()

	assert.Equal(t, StatusInstructions, snap.Status)
	assert.Equal(t, 600, snap.RemainingTimeSeconds)
	assert.Empty(t, snap.QuestionIDs)
	assert.Empty(t, snap.Answers)
}

func TestResume_PausedTimedSession(t *testing.T) {
	cfg := Config{Mode: ModeTimed, TimeLimit: 10 * time.Minute}
	rig := started(t, cfg, threeQuestions())
	ctx := context.Background()

	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Advance(ctx, 1))
	for i := 0; i < 120; i++ {
		rig.ctrl.AdvanceClock(ctx, time.Second)
	}
	require.NoError(t, rig.ctrl.Pause(ctx))
	before := rig.ctrl.Snapshot()

	// A second process picks the session up from the shared store.
	resumed := NewController(Config{
		SessionID: "sess-1", ExamID: "exam-1", Mode: ModeTimed,
		TimeLimit: 10 * time.Minute, QuestionCount: 3, PassingScore: 0.7,
	}, rig.store, rig.results, rig.persist, nil, zerolog.Nop())
	require.NoError(t, resumed.Start(ctx))

	assert.Equal(t, StatusPaused, resumed.Status())
	assert.Equal(t, before, resumed.Snapshot())
	assert.Equal(t, 10*time.Minute-2*time.Minute, resumed.TimeRemaining())

	// The resumed session is fully live again.
	require.NoError(t, resumed.Resume())
	_, err = resumed.SubmitAnswer(ctx, "q2", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 2, resumed.Stats().AnsweredCount)
}

func TestResume_PracticeElapsedFromDwellTimes(t *testing.T) {
	cfg := Config{Mode: ModePractice}
	rig := started(t, cfg, threeQuestions())
	ctx := context.Background()

	for i := 0; i < 45; i++ {
		rig.ctrl.AdvanceClock(ctx, time.Second)
	}
	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"}) // attributes 45s to q1
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Pause(ctx))

	resumed := NewController(Config{
		SessionID: "sess-1", ExamID: "exam-1", Mode: ModePractice,
		QuestionCount: 3, PassingScore: 0.7,
	}, rig.store, rig.results, rig.persist, nil, zerolog.Nop())
	require.NoError(t, resumed.Start(ctx))

	assert.Equal(t, 45*time.Second, resumed.TimeElapsed())
}

func TestResume_RebuildsScoringState(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())
	ctx := context.Background()

	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"}) // correct
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Advance(ctx, 1))
	_, err = rig.ctrl.SubmitAnswer(ctx, "q2", []string{"c"}) // incorrect
	require.NoError(t, err)
	require.NoError(t, rig.ctrl.Pause(ctx))

	resumed := NewController(Config{
		SessionID: "sess-1", ExamID: "exam-1", Mode: ModePractice,
		QuestionCount: 3, PassingScore: 0.7,
	}, rig.store, rig.results, rig.persist, nil, zerolog.Nop())
	require.NoError(t, resumed.Start(ctx))
	require.NoError(t, resumed.Resume())
	require.NoError(t, resumed.Finish(ctx))

	res := resumed.Result()
	require.NotNil(t, res)
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 1, res.IncorrectCount)
	assert.Equal(t, 1, res.SkippedCount)
	assert.Equal(t, ObjectiveScore{Correct: 1, Total: 2}, res.Breakdown["A"])
}

func TestResume_DoesNotReplayTimeWarnings(t *testing.T) {
	rig := started(t, Config{Mode: ModeTimed, TimeLimit: 100 * time.Second}, threeQuestions())
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		rig.ctrl.AdvanceClock(ctx, time.Second)
	}
	// Checkpoint with the 50% warning already behind us.
	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"})
	require.NoError(t, err)

	var warnings []float64
	resumed := NewController(Config{
		SessionID: "sess-1", ExamID: "exam-1", Mode: ModeTimed,
		TimeLimit: 100 * time.Second, QuestionCount: 3, PassingScore: 0.7,
	}, rig.store, rig.results, rig.persist, func(ev Event) {
		if ev.Type == EventTimeWarning {
			warnings = append(warnings, ev.Fraction)
		}
	}, zerolog.Nop())
	require.NoError(t, resumed.Start(ctx))

	resumed.AdvanceClock(ctx, time.Second)
	assert.Empty(t, warnings, "crossed warnings must not replay on resume")

	for i := 0; i < 29; i++ {
		resumed.AdvanceClock(ctx, time.Second)
	}
	assert.Equal(t, []float64{0.1}, warnings)
}

func TestResume_MismatchedExamIsRejected(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())
	require.NoError(t, rig.ctrl.Pause(context.Background()))

	resumed := NewController(Config{
		SessionID: "sess-1", ExamID: "exam-other", Mode: ModePractice,
		QuestionCount: 3, PassingScore: 0.7,
	}, rig.store, rig.results, rig.persist, nil, zerolog.Nop())

	var cfgErr *ConfigurationError
	require.ErrorAs(t, resumed.Start(context.Background()), &cfgErr)
}

func TestResume_FinishedSnapshotStartsFresh(t *testing.T) {
	rig := started(t, Config{Mode: ModePractice}, threeQuestions())
	ctx := context.Background()
	require.NoError(t, rig.ctrl.Finish(ctx))
	require.Equal(t, StatusResults, rig.persist.snaps["sess-1"].Status)

	restarted := NewController(Config{
		SessionID: "sess-1", ExamID: "exam-1", Mode: ModePractice,
		QuestionCount: 3, PassingScore: 0.7,
	}, rig.store, rig.results, rig.persist, nil, zerolog.Nop())
	require.NoError(t, restarted.Start(ctx))

	assert.Equal(t, StatusActive, restarted.Status())
	assert.Empty(t, restarted.Snapshot().Answers)
}

func TestResume_FormalRestoresViolations(t *testing.T) {
	rig := started(t, Config{Mode: ModeFormal, TimeLimit: time.Hour}, threeQuestions())
	ctx := context.Background()

	require.NoError(t, rig.ctrl.RecordSignal(SignalFullscreenExit, time.Unix(1757000000, 0).UTC()))
	_, err := rig.ctrl.SubmitAnswer(ctx, "q1", []string{"a"}) // checkpoint
	require.NoError(t, err)

	resumed := NewController(Config{
		SessionID: "sess-1", ExamID: "exam-1", Mode: ModeFormal,
		TimeLimit: time.Hour, QuestionCount: 3, PassingScore: 0.7,
	}, rig.store, rig.results, rig.persist, nil, zerolog.Nop())
	require.NoError(t, resumed.Start(ctx))

	vs := resumed.Violations()
	require.Len(t, vs, 1)
	assert.Equal(t, SignalFullscreenExit, vs[0].Type)
}
