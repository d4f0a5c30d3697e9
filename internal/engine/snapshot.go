package engine

import "sort"

// Snapshot is the serializable representation of a session, sufficient to
// resume it exactly. The format must round-trip without loss; see the
// round-trip tests before changing any field.
type Snapshot struct {
	SessionID            string              `json:"sessionId"`
	ExamID               string              `json:"examId"`
	Mode                 Mode                `json:"mode"`
	QuestionIDs          []string            `json:"questionIds"`
	CurrentPosition      int                 `json:"currentPosition"`
	Answers              map[string][]string `json:"answers"`
	TimePerQuestion      map[string]int      `json:"timePerQuestion"`
	Flagged              []string            `json:"flagged"`
	RemainingTimeSeconds int                 `json:"remainingTimeSeconds"`
	Status               Status              `json:"status"`
	Violations           []Violation         `json:"violations"`
}

// Snapshot captures the controller's current state. Safe to call from any
// state; the controller itself calls it at checkpoints (after submits,
// navigation, and pause).
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		SessionID:       c.cfg.SessionID,
		ExamID:          c.cfg.ExamID,
		Mode:            c.cfg.Mode,
		QuestionIDs:     make([]string, len(c.questions)),
		CurrentPosition: c.position,
		Answers:         make(map[string][]string, len(c.answers)),
		TimePerQuestion: make(map[string]int, len(c.timeSpent)),
		Flagged:         make([]string, 0, len(c.flagged)),
		Status:          c.status,
		Violations:      []Violation{},
	}
	// The clock exists only after Start; before that the configured limit is
	// all there is to report.
	if c.clock != nil {
		snap.RemainingTimeSeconds = int(c.clock.Remaining().Seconds())
	} else {
		snap.RemainingTimeSeconds = int(c.cfg.TimeLimit.Seconds())
	}

	for i := range c.questions {
		snap.QuestionIDs[i] = c.questions[i].ID
	}
	for qid, sel := range c.answers {
		cp := make([]string, len(sel))
		copy(cp, sel)
		snap.Answers[qid] = cp
	}
	for qid, d := range c.timeSpent {
		snap.TimePerQuestion[qid] = int(d.Seconds())
	}
	for qid := range c.flagged {
		snap.Flagged = append(snap.Flagged, qid)
	}
	sort.Strings(snap.Flagged)

	if c.monitor != nil {
		snap.Violations = c.monitor.Violations()
	}

	return snap
}
