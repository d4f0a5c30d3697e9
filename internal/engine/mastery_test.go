package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMastery_IncrementalCounters(t *testing.T) {
	m := NewMasteryScorer(nil)

	m.Record("net", true)
	m.Record("net", false)
	m.Record("sec", true)

	assert.Equal(t, 0.5, m.AccuracyFor("net"))
	assert.Equal(t, 1.0, m.AccuracyFor("sec"))
	assert.Equal(t, 0.0, m.AccuracyFor("unknown"))

	b := m.Breakdown()
	assert.Equal(t, ObjectiveScore{Correct: 1, Total: 2}, b["net"])
	assert.Equal(t, ObjectiveScore{Correct: 1, Total: 1}, b["sec"])
}

func TestMastery_WeakAndStrongObjectives(t *testing.T) {
	m := NewMasteryScorer(nil)

	// net: 1/4, sec: 3/4, storage: 4/4
	m.Record("net", true)
	for i := 0; i < 3; i++ {
		m.Record("net", false)
	}
	for i := 0; i < 3; i++ {
		m.Record("sec", true)
	}
	m.Record("sec", false)
	for i := 0; i < 4; i++ {
		m.Record("storage", true)
	}

	assert.Equal(t, []string{"net"}, m.WeakObjectives(WeakObjectiveThreshold))
	assert.Equal(t, []string{"sec", "storage"}, m.StrongObjectives(StrongObjectiveThreshold))
}

func TestMastery_ReadinessWeighted(t *testing.T) {
	m := NewMasteryScorer(map[string]float64{"net": 3, "sec": 1})

	m.Record("net", true) // accuracy 1.0, weight 3
	m.Record("sec", false)
	m.Record("sec", false) // accuracy 0.0, weight 1

	assert.InDelta(t, 0.75, m.ReadinessScore(), 1e-9)
}

func TestMastery_ReadinessEqualWeightFallback(t *testing.T) {
	m := NewMasteryScorer(nil)

	m.Record("a", true)
	m.Record("b", false)

	assert.InDelta(t, 0.5, m.ReadinessScore(), 1e-9)
}

func TestMastery_ReadinessEmptyIsZero(t *testing.T) {
	m := NewMasteryScorer(nil)
	assert.Zero(t, m.ReadinessScore())
}

func TestMastery_Streaks(t *testing.T) {
	m := NewMasteryScorer(nil)

	m.Record("a", true)
	m.Record("a", true)
	m.Record("b", true)
	assert.Equal(t, 3, m.Streak())

	m.Record("b", false)
	assert.Equal(t, 0, m.Streak())
	assert.Equal(t, 3, m.BestStreak())
}

func TestMastery_AmendReplacesResult(t *testing.T) {
	m := NewMasteryScorer(nil)

	m.Record("net", false)
	m.Amend("net", false, true)

	assert.Equal(t, ObjectiveScore{Correct: 1, Total: 1}, m.Breakdown()["net"])

	m.Amend("net", true, false)
	assert.Equal(t, ObjectiveScore{Correct: 0, Total: 1}, m.Breakdown()["net"])
}

func TestMastery_CloneIsIndependent(t *testing.T) {
	m := NewMasteryScorer(nil)
	m.Record("net", true)

	cp := m.clone()
	cp.Record("net", false)
	cp.Record("sec", false)

	assert.Equal(t, ObjectiveScore{Correct: 1, Total: 1}, m.Breakdown()["net"])
	assert.NotContains(t, m.Breakdown(), "sec")
	assert.Equal(t, ObjectiveScore{Correct: 1, Total: 2}, cp.Breakdown()["net"])
}
