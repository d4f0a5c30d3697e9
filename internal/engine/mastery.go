package engine

import "sort"

// ObjectiveScore is the running accuracy counter for a single exam objective.
type ObjectiveScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Accuracy returns the rolling accuracy, or zero before any scored answer.
func (o ObjectiveScore) Accuracy() float64 {
	if o.Total == 0 {
		return 0
	}
	return float64(o.Correct) / float64(o.Total)
}

// Default thresholds for classifying objectives by accuracy.
const (
	WeakObjectiveThreshold   = 0.6
	StrongObjectiveThreshold = 0.75
)

// MasteryScorer aggregates per-objective accuracy and an overall readiness
// estimate from a stream of scored answers. Every update is an incremental
// counter bump, no rescans.
type MasteryScorer struct {
	weights    map[string]float64
	scores     map[string]*ObjectiveScore
	streak     int
	bestStreak int
}

// NewMasteryScorer creates a scorer. weights maps objective id to its
// configured exam weight; a nil or empty map falls back to equal weighting.
func NewMasteryScorer(weights map[string]float64) *MasteryScorer {
	return &MasteryScorer{
		weights: weights,
		scores:  make(map[string]*ObjectiveScore),
	}
}

// Record scores one answer against its objective.
func (m *MasteryScorer) Record(objectiveID string, correct bool) {
	s := m.scores[objectiveID]
	if s == nil {
		s = &ObjectiveScore{}
		m.scores[objectiveID] = s
	}
	s.Total++
	if correct {
		s.Correct++
		m.streak++
		if m.streak > m.bestStreak {
			m.bestStreak = m.streak
		}
	} else {
		m.streak = 0
	}
}

// Amend replaces a previously recorded result for an objective, used when a
// candidate overwrites their answer while still on the question. Streak
// counters are left as-is; they track submission order, not final answers.
func (m *MasteryScorer) Amend(objectiveID string, prevCorrect, newCorrect bool) {
	s := m.scores[objectiveID]
	if s == nil {
		m.Record(objectiveID, newCorrect)
		return
	}
	if prevCorrect {
		s.Correct--
	}
	if newCorrect {
		s.Correct++
	}
}

// AccuracyFor returns the rolling accuracy for one objective.
func (m *MasteryScorer) AccuracyFor(objectiveID string) float64 {
	s := m.scores[objectiveID]
	if s == nil {
		return 0
	}
	return s.Accuracy()
}

// WeakObjectives returns objective ids with accuracy strictly below the
// threshold, sorted for deterministic output.
func (m *MasteryScorer) WeakObjectives(threshold float64) []string {
	var ids []string
	for id, s := range m.scores {
		if s.Accuracy() < threshold {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// StrongObjectives returns objective ids with accuracy at or above the
// threshold, sorted for deterministic output.
func (m *MasteryScorer) StrongObjectives(threshold float64) []string {
	var ids []string
	for id, s := range m.scores {
		if s.Accuracy() >= threshold {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ReadinessScore is the weighted average of per-objective accuracy, weighted
// by each objective's configured exam weight. Objectives without a configured
// weight (or an absent weight map) weigh equally at 1.
func (m *MasteryScorer) ReadinessScore() float64 {
	if len(m.scores) == 0 {
		return 0
	}
	var sum, weightSum float64
	for id, s := range m.scores {
		w := 1.0
		if m.weights != nil {
			if cw, ok := m.weights[id]; ok && cw > 0 {
				w = cw
			}
		}
		sum += s.Accuracy() * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// Breakdown returns a copy of the per-objective counters.
func (m *MasteryScorer) Breakdown() map[string]ObjectiveScore {
	out := make(map[string]ObjectiveScore, len(m.scores))
	for id, s := range m.scores {
		out[id] = *s
	}
	return out
}

// clone returns an independent copy, used to score hypothetical updates
// (skipped-question penalties at finalization) without touching the live
// counters until the result is durably recorded.
func (m *MasteryScorer) clone() *MasteryScorer {
	cp := &MasteryScorer{
		weights:    m.weights,
		scores:     make(map[string]*ObjectiveScore, len(m.scores)),
		streak:     m.streak,
		bestStreak: m.bestStreak,
	}
	for id, s := range m.scores {
		sc := *s
		cp.scores[id] = &sc
	}
	return cp
}

// Streak returns the current run of consecutive correct answers.
func (m *MasteryScorer) Streak() int { return m.streak }

// BestStreak returns the longest run of consecutive correct answers.
func (m *MasteryScorer) BestStreak() int { return m.bestStreak }
