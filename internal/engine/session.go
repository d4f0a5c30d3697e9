package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mode selects the navigation, feedback, and integrity rules for a session.
type Mode string

const (
	// ModePractice allows free navigation, pausing, and instant feedback.
	ModePractice Mode = "practice"
	// ModeTimed adds a countdown; feedback is withheld until results.
	ModeTimed Mode = "timed"
	// ModeFormal is the strict exam simulation: timed, forward-only
	// navigation, no pausing, integrity monitoring attached.
	ModeFormal Mode = "formal"
)

// Status enumerates the session lifecycle states.
type Status string

const (
	StatusInstructions Status = "instructions"
	StatusActive       Status = "active"
	StatusPaused       Status = "paused"
	StatusTimeExpired  Status = "time_expired"
	StatusSubmitting   Status = "submitting"
	StatusResults      Status = "results"
	StatusReview       Status = "review"
)

// Remaining-time fractions at which a warning event is emitted.
var timeWarningFractions = []float64{0.5, 0.1, 0.05}

// Config describes one session. Validated by Start.
type Config struct {
	SessionID     string
	ExamID        string
	Mode          Mode
	QuestionCount int
	// TimeLimit is required for timed and formal modes. Practice sessions
	// run on a count-up clock and may leave it zero.
	TimeLimit time.Duration
	// Shuffle materializes the question sequence in a per-session random
	// order. ShuffleSeed pins the order for reproducibility; zero seeds
	// from the wall clock.
	Shuffle     bool
	ShuffleSeed int64
	Filters     QuestionFilters
	// PassingScore is the fraction of correct answers required to pass.
	PassingScore float64
	// ObjectiveWeights maps objective id to its exam weight for the
	// readiness estimate. Empty means equal weighting.
	ObjectiveWeights map[string]float64
}

// Feedback is the practice-mode side channel returned from SubmitAnswer,
// distinct from the state transition. Timed and formal sessions receive nil
// until results.
type Feedback struct {
	Correct          bool     `json:"correct"`
	CorrectOptionIDs []string `json:"correct_option_ids"`
	Explanation      string   `json:"explanation,omitempty"`
}

// LiveStats is a read-only view of in-flight session statistics.
type LiveStats struct {
	Position         int      `json:"position"`
	TotalQuestions   int      `json:"total_questions"`
	AnsweredCount    int      `json:"answered_count"`
	FlaggedCount     int      `json:"flagged_count"`
	Readiness        float64  `json:"readiness"`
	Streak           int      `json:"streak"`
	WeakObjectives   []string `json:"weak_objectives"`
	StrongObjectives []string `json:"strong_objectives"`
}

// ReviewEntry is one question in read-only review, with correctness and
// explanation visible regardless of the session's original mode.
type ReviewEntry struct {
	Position         int             `json:"position"`
	Question         Question        `json:"question"`
	Submitted        []string        `json:"submitted"`
	Outcome          QuestionOutcome `json:"outcome"`
	CorrectOptionIDs []string        `json:"correct_option_ids"`
	Explanation      string          `json:"explanation,omitempty"`
	Flagged          bool            `json:"flagged"`
}

// Controller is the session state machine. It owns all session state and
// serializes every input, user operations and clock ticks alike, through a
// single mutex, so one event always runs to completion before the next is
// accepted. That serialization is what makes the answer-vs-expiry race
// deterministic: whichever event enters first is logically earlier.
type Controller struct {
	mu sync.Mutex

	cfg    Config
	status Status

	questions []Question
	index     map[string]int
	position  int

	answers     map[string][]string
	correctness map[string]bool
	timeSpent   map[string]time.Duration
	flagged     map[string]struct{}
	// shownAt is the clock elapsed value when the current question was
	// last displayed (or last answered), used to attribute dwell time.
	shownAt time.Duration

	clock   *Clock
	mastery *MasteryScorer
	monitor *IntegrityMonitor

	questionStore QuestionStore
	resultStore   ResultStore
	persistence   PersistenceAdapter
	observer      Observer

	result *FinalizedResult

	log zerolog.Logger
}

// NewController wires a controller with its collaborators. The controller
// starts in the instructions state; call Start to activate it. observer may
// be nil.
func NewController(
	cfg Config,
	questions QuestionStore,
	results ResultStore,
	persistence PersistenceAdapter,
	observer Observer,
	log zerolog.Logger,
) *Controller {
	return &Controller{
		cfg:           cfg,
		status:        StatusInstructions,
		answers:       make(map[string][]string),
		correctness:   make(map[string]bool),
		timeSpent:     make(map[string]time.Duration),
		flagged:       make(map[string]struct{}),
		mastery:       NewMasteryScorer(cfg.ObjectiveWeights),
		questionStore: questions,
		resultStore:   results,
		persistence:   persistence,
		observer:      observer,
		log: log.With().
			Str("component", "session_controller").
			Str("session_id", cfg.SessionID).
			Logger(),
	}
}

// ─── Lifecycle ──────────────────────────────────────────────────────

// Start validates the configuration, materializes the question sequence, and
// activates the session. If the persistence adapter holds a resumable
// snapshot for this session id, the session resumes from it instead of
// starting fresh.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusInstructions {
		return &OperationForbiddenError{Op: "start", Mode: c.cfg.Mode, Status: c.status}
	}

	if c.cfg.QuestionCount < 1 {
		return &ConfigurationError{Reason: "question count must be at least 1"}
	}
	if (c.cfg.Mode == ModeTimed || c.cfg.Mode == ModeFormal) && c.cfg.TimeLimit <= 0 {
		return &ConfigurationError{Reason: "time limit is required for timed and formal modes"}
	}
	switch c.cfg.Mode {
	case ModePractice, ModeTimed, ModeFormal:
	default:
		return &ConfigurationError{Reason: "unknown mode " + string(c.cfg.Mode)}
	}

	if c.persistence != nil {
		snap, err := c.persistence.Load(ctx, c.cfg.SessionID)
		if err != nil {
			c.warn(err)
		} else if snap != nil && (snap.Status == StatusActive || snap.Status == StatusPaused) {
			return c.restoreLocked(ctx, snap)
		}
	}

	filters := c.cfg.Filters
	filters.Count = c.cfg.QuestionCount

	qs, err := c.questionStore.FetchQuestions(ctx, c.cfg.ExamID, filters)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return err
		}
		return &StoreUnavailableError{Op: "start", Err: err}
	}
	// Never silently serve fewer questions than requested.
	if len(qs) != c.cfg.QuestionCount {
		return &ConfigurationError{Reason: "question store returned a partial batch"}
	}

	if c.cfg.Shuffle {
		seed := c.cfg.ShuffleSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	}

	c.adoptQuestions(qs)
	c.initClock(0)
	if c.cfg.Mode == ModeFormal {
		c.monitor = NewIntegrityMonitor()
	}

	c.position = 0
	c.shownAt = 0
	c.setStatus(StatusActive)
	c.log.Info().
		Str("exam_id", c.cfg.ExamID).
		Str("mode", string(c.cfg.Mode)).
		Int("questions", len(qs)).
		Msg("Session started")
	c.checkpoint(ctx)
	return nil
}

// restoreLocked rebuilds the session from a snapshot. Called under c.mu.
func (c *Controller) restoreLocked(ctx context.Context, snap *Snapshot) error {
	if snap.ExamID != c.cfg.ExamID || snap.Mode != c.cfg.Mode {
		return &ConfigurationError{Reason: "snapshot does not match the requested session"}
	}

	qs, err := c.questionStore.FetchByIDs(ctx, snap.ExamID, snap.QuestionIDs)
	if err != nil {
		return &StoreUnavailableError{Op: "resume", Err: err}
	}
	if len(qs) != len(snap.QuestionIDs) {
		return &ConfigurationError{Reason: "question sequence is no longer available"}
	}
	c.adoptQuestions(qs)

	if snap.CurrentPosition < 0 || snap.CurrentPosition >= len(c.questions) {
		return &ConfigurationError{Reason: "snapshot position out of range"}
	}
	c.position = snap.CurrentPosition

	for qid, sel := range snap.Answers {
		pos, ok := c.index[qid]
		if !ok {
			return &ConfigurationError{Reason: "snapshot answer references unknown question"}
		}
		cp := make([]string, len(sel))
		copy(cp, sel)
		c.answers[qid] = cp
		correct := Validate(&c.questions[pos], sel)
		c.correctness[qid] = correct
		c.mastery.Record(c.questions[pos].ObjectiveID, correct)
	}
	for qid, secs := range snap.TimePerQuestion {
		c.timeSpent[qid] = time.Duration(secs) * time.Second
	}
	for _, qid := range snap.Flagged {
		c.flagged[qid] = struct{}{}
	}

	c.initClock(c.restoredElapsed(snap))
	if c.cfg.Mode == ModeFormal {
		c.monitor = NewIntegrityMonitor()
		c.monitor.restore(snap.Violations)
	}

	c.shownAt = c.clock.Elapsed()
	c.setStatus(snap.Status)
	if snap.Status == StatusPaused {
		c.clock.Pause()
	}
	c.log.Info().
		Str("exam_id", c.cfg.ExamID).
		Int("position", c.position).
		Int("answers", len(c.answers)).
		Msg("Session resumed from snapshot")
	return nil
}

// restoredElapsed derives the clock's elapsed time from a snapshot. Timed
// clocks carry it implicitly in remaining time; practice clocks reconstruct
// it from per-question dwell, the only elapsed record a snapshot keeps.
func (c *Controller) restoredElapsed(snap *Snapshot) time.Duration {
	if c.cfg.TimeLimit > 0 {
		return c.cfg.TimeLimit - time.Duration(snap.RemainingTimeSeconds)*time.Second
	}
	var total time.Duration
	for _, secs := range snap.TimePerQuestion {
		total += time.Duration(secs) * time.Second
	}
	return total
}

func (c *Controller) adoptQuestions(qs []Question) {
	c.questions = qs
	c.index = make(map[string]int, len(qs))
	for i := range qs {
		c.index[qs[i].ID] = i
	}
}

func (c *Controller) initClock(elapsed time.Duration) {
	c.clock = NewClock(c.cfg.TimeLimit)
	for _, f := range timeWarningFractions {
		frac := f
		c.clock.OnThreshold(frac, func(fraction float64) {
			c.emit(Event{Type: EventTimeWarning, SessionID: c.cfg.SessionID, Status: c.status, Fraction: fraction})
		})
	}
	if elapsed > 0 {
		c.clock.restoreElapsed(elapsed)
	}
}

// ─── Answering and navigation ───────────────────────────────────────

// SubmitAnswer records a selection for the current question. In practice
// mode it returns immediate feedback; timed and formal sessions get nil
// until results. Invalid selections reject without mutating state.
func (c *Controller) SubmitAnswer(ctx context.Context, questionID string, selection []string) (*Feedback, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive("submit_answer"); err != nil {
		return nil, err
	}

	cur := &c.questions[c.position]
	if questionID != cur.ID {
		return nil, &InvalidAnswerError{QuestionID: questionID, Reason: "not the current question"}
	}
	if err := c.validateSelection(cur, selection); err != nil {
		return nil, err
	}

	correct := Validate(cur, selection)
	prev, resubmission := c.correctness[cur.ID]

	sel := make([]string, len(selection))
	copy(sel, selection)
	c.answers[cur.ID] = sel
	c.correctness[cur.ID] = correct

	if resubmission {
		c.mastery.Amend(cur.ObjectiveID, prev, correct)
	} else {
		c.mastery.Record(cur.ObjectiveID, correct)
	}

	c.accrueTime()
	c.checkpoint(ctx)

	if c.cfg.Mode == ModePractice {
		return &Feedback{
			Correct:          correct,
			CorrectOptionIDs: cur.CorrectOptionIDs(),
			Explanation:      cur.Explanation,
		}, nil
	}
	return nil, nil
}

func (c *Controller) validateSelection(q *Question, selection []string) error {
	if len(selection) == 0 {
		return &InvalidAnswerError{QuestionID: q.ID, Reason: "selection is empty"}
	}
	if q.Type == QuestionSingleSelect && len(selection) != 1 {
		return &InvalidAnswerError{QuestionID: q.ID, Reason: "single-select requires exactly one option"}
	}
	seen := make(map[string]struct{}, len(selection))
	for _, id := range selection {
		if !q.HasOption(id) {
			return &InvalidAnswerError{QuestionID: q.ID, Reason: "unknown option " + id}
		}
		if _, dup := seen[id]; dup {
			return &InvalidAnswerError{QuestionID: q.ID, Reason: "duplicate option " + id}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Advance moves the session to the question at target. Practice and timed
// sessions navigate freely; formal sessions only move forward. Advancing
// past the last question is a no-op; callers finish explicitly.
func (c *Controller) Advance(ctx context.Context, target int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive("advance"); err != nil {
		return err
	}
	if target == c.position {
		return nil
	}
	if target < 0 {
		return &NavigationForbiddenError{From: c.position, To: target}
	}
	if target >= len(c.questions) {
		return nil
	}
	if c.cfg.Mode == ModeFormal && target < c.position {
		// Forward-only is a deliberate integrity constraint of formal mode.
		return &NavigationForbiddenError{From: c.position, To: target}
	}

	c.accrueTime()
	c.position = target
	c.checkpoint(ctx)
	return nil
}

// Flag marks the current question for later review. Set semantics; no effect
// on scoring.
func (c *Controller) Flag() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireActive("flag"); err != nil {
		return err
	}
	c.flagged[c.questions[c.position].ID] = struct{}{}
	return nil
}

// Unflag removes the current question from the flagged set.
func (c *Controller) Unflag() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireActive("unflag"); err != nil {
		return err
	}
	delete(c.flagged, c.questions[c.position].ID)
	return nil
}

// ─── Pause / resume ─────────────────────────────────────────────────

// Pause freezes the clock. Forbidden in formal mode. Idempotent.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Mode == ModeFormal {
		return &OperationForbiddenError{Op: "pause", Mode: c.cfg.Mode, Status: c.status}
	}
	if c.status == StatusPaused {
		return nil
	}
	if c.status != StatusActive {
		return &OperationForbiddenError{Op: "pause", Mode: c.cfg.Mode, Status: c.status}
	}

	c.accrueTime()
	c.clock.Pause()
	c.setStatus(StatusPaused)
	c.checkpoint(ctx)
	return nil
}

// Resume restarts the clock from the frozen remaining time. Idempotent.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusActive {
		return nil
	}
	if c.status != StatusPaused {
		return &OperationForbiddenError{Op: "resume", Mode: c.cfg.Mode, Status: c.status}
	}

	c.clock.Resume()
	c.shownAt = c.clock.Elapsed()
	c.setStatus(StatusActive)
	return nil
}

// ─── Clock input ────────────────────────────────────────────────────

// AdvanceClock feeds an observed wall-clock delta into the session clock.
// The real-time driver calls this once per second; tests call it directly
// with simulated deltas. Crossing zero forces the expiry transition before
// any later submission can be accepted.
func (c *Controller) AdvanceClock(ctx context.Context, delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusActive {
		return
	}

	c.clock.Advance(delta)

	if c.clock.Expired() {
		c.setStatus(StatusTimeExpired)
		c.emit(Event{Type: EventExpired, SessionID: c.cfg.SessionID, Status: c.status})
		c.log.Info().Msg("Time expired, auto-submitting")
		if err := c.finalizeLocked(ctx); err != nil {
			// Session stays in time_expired; Finish retries the store call.
			c.log.Error().Err(err).Msg("Auto-submit failed, awaiting retry")
		}
	}
}

// ─── Finish and review ──────────────────────────────────────────────

// Finish computes the final result and hands it to the Result Store. Valid
// from active (any mode, user-initiated) or time_expired (retry of a failed
// auto-submit). On a store failure the session state is unchanged and Finish
// may be retried.
func (c *Controller) Finish(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusActive && c.status != StatusTimeExpired {
		return &OperationForbiddenError{Op: "finish", Mode: c.cfg.Mode, Status: c.status}
	}
	return c.finalizeLocked(ctx)
}

func (c *Controller) finalizeLocked(ctx context.Context) error {
	prev := c.status
	c.setStatus(StatusSubmitting)
	c.accrueTime()

	// Unanswered questions count as incorrect, both for the score and
	// against their objective. Scored into a scratch copy so a store
	// failure leaves the live counters untouched.
	final := c.mastery.clone()
	outcomes := make(map[string]QuestionOutcome, len(c.questions))
	correct, incorrect, skipped := 0, 0, 0
	for i := range c.questions {
		q := &c.questions[i]
		res, answered := c.correctness[q.ID]
		switch {
		case !answered:
			skipped++
			outcomes[q.ID] = OutcomeSkipped
			final.Record(q.ObjectiveID, false)
		case res:
			correct++
			outcomes[q.ID] = OutcomeCorrect
		default:
			incorrect++
			outcomes[q.ID] = OutcomeIncorrect
		}
	}

	total := len(c.questions)
	score := float64(correct) / float64(total)

	result := &FinalizedResult{
		SessionID:        c.cfg.SessionID,
		ExamID:           c.cfg.ExamID,
		Mode:             c.cfg.Mode,
		Score:            score,
		Passed:           score >= c.cfg.PassingScore,
		CorrectCount:     correct,
		IncorrectCount:   incorrect,
		SkippedCount:     skipped,
		TotalQuestions:   total,
		Breakdown:        final.Breakdown(),
		Readiness:        final.ReadinessScore(),
		Outcomes:         outcomes,
		TotalTimeSeconds: int(c.clock.Elapsed().Seconds()),
	}
	if c.monitor != nil {
		result.ViolationCount = c.monitor.Count()
	}

	if err := c.resultStore.RecordResult(ctx, c.cfg.SessionID, result); err != nil {
		c.setStatus(prev)
		return &StoreUnavailableError{Op: "finish", Err: err}
	}

	c.mastery = final
	c.result = result
	c.setStatus(StatusResults)
	c.log.Info().
		Float64("score", score).
		Bool("passed", result.Passed).
		Int("skipped", skipped).
		Msg("Session finalized")
	c.checkpoint(ctx)
	return nil
}

// EnterReview moves a completed session into read-only review.
func (c *Controller) EnterReview() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusResults {
		return &OperationForbiddenError{Op: "enter_review", Mode: c.cfg.Mode, Status: c.status}
	}
	c.setStatus(StatusReview)
	return nil
}

// ReviewEntryAt returns the review view of the question at position, with
// correctness and explanation visible regardless of the original mode.
// Backward and forward access is unrestricted in review.
func (c *Controller) ReviewEntryAt(position int) (*ReviewEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusReview {
		return nil, &OperationForbiddenError{Op: "review", Mode: c.cfg.Mode, Status: c.status}
	}
	if position < 0 || position >= len(c.questions) {
		return nil, &NavigationForbiddenError{From: c.position, To: position}
	}

	q := c.questions[position]
	entry := &ReviewEntry{
		Position:         position,
		Question:         q,
		CorrectOptionIDs: q.CorrectOptionIDs(),
		Explanation:      q.Explanation,
		Outcome:          c.result.Outcomes[q.ID],
	}
	if sel, ok := c.answers[q.ID]; ok {
		entry.Submitted = make([]string, len(sel))
		copy(entry.Submitted, sel)
	}
	_, entry.Flagged = c.flagged[q.ID]
	return entry, nil
}

// ─── Integrity ──────────────────────────────────────────────────────

// RecordSignal appends an integrity violation to a formal session. The
// clock keeps running and candidate input is never blocked.
func (c *Controller) RecordSignal(t SignalType, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.monitor == nil {
		return &OperationForbiddenError{Op: "record_signal", Mode: c.cfg.Mode, Status: c.status}
	}
	if c.status != StatusActive && c.status != StatusTimeExpired {
		return &OperationForbiddenError{Op: "record_signal", Mode: c.cfg.Mode, Status: c.status}
	}

	c.monitor.Record(t, at)
	c.emit(Event{Type: EventViolation, SessionID: c.cfg.SessionID, Status: c.status, Signal: t})
	return nil
}

// Violations returns the recorded integrity violations, if any.
func (c *Controller) Violations() []Violation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.monitor == nil {
		return nil
	}
	return c.monitor.Violations()
}

// ─── Read-only accessors ────────────────────────────────────────────

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SessionID returns the session identifier.
func (c *Controller) SessionID() string { return c.cfg.SessionID }

// Mode returns the session mode.
func (c *Controller) Mode() Mode { return c.cfg.Mode }

// CurrentQuestion returns a copy of the question at the current position,
// or nil before the session starts.
func (c *Controller) CurrentQuestion() (*Question, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.questions) == 0 || c.position >= len(c.questions) {
		return nil, c.position
	}
	q := c.questions[c.position]
	return &q, c.position
}

// TimeRemaining returns the countdown value, zero for practice sessions.
func (c *Controller) TimeRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock == nil {
		return 0
	}
	return c.clock.Remaining()
}

// TimeElapsed returns total active session time.
func (c *Controller) TimeElapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clock == nil {
		return 0
	}
	return c.clock.Elapsed()
}

// Stats returns live session statistics.
func (c *Controller) Stats() LiveStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return LiveStats{
		Position:         c.position,
		TotalQuestions:   len(c.questions),
		AnsweredCount:    len(c.answers),
		FlaggedCount:     len(c.flagged),
		Readiness:        c.mastery.ReadinessScore(),
		Streak:           c.mastery.Streak(),
		WeakObjectives:   c.mastery.WeakObjectives(WeakObjectiveThreshold),
		StrongObjectives: c.mastery.StrongObjectives(StrongObjectiveThreshold),
	}
}

// Result returns the finalized result, or nil before submission completes.
func (c *Controller) Result() *FinalizedResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// ─── Internals ──────────────────────────────────────────────────────

// requireActive gates operations on the active state, distinguishing
// post-expiry rejections from plain state-machine violations.
func (c *Controller) requireActive(op string) error {
	if c.status == StatusActive {
		return nil
	}
	if c.clock != nil && c.clock.Expired() {
		return &SessionExpiredError{SessionID: c.cfg.SessionID}
	}
	return &OperationForbiddenError{Op: op, Mode: c.cfg.Mode, Status: c.status}
}

// accrueTime attributes clock time since shownAt to the current question.
func (c *Controller) accrueTime() {
	if len(c.questions) == 0 || c.position >= len(c.questions) {
		return
	}
	now := c.clock.Elapsed()
	qid := c.questions[c.position].ID
	c.timeSpent[qid] += now - c.shownAt
	c.shownAt = now
}

func (c *Controller) setStatus(s Status) {
	c.status = s
	c.emit(Event{Type: EventStateChanged, SessionID: c.cfg.SessionID, Status: s})
}

// checkpoint saves a snapshot, best-effort. Failures surface as a warning
// event and never roll back in-memory state.
func (c *Controller) checkpoint(ctx context.Context) {
	if c.persistence == nil {
		return
	}
	if err := c.persistence.Save(ctx, c.snapshotLocked()); err != nil {
		c.warn(err)
	}
}

func (c *Controller) warn(err error) {
	w := &PersistenceWarning{Err: err}
	c.log.Warn().Err(err).Msg("Snapshot persistence failed, session continues in memory")
	c.emit(Event{Type: EventSaveWarning, SessionID: c.cfg.SessionID, Status: c.status, Err: w})
}

func (c *Controller) emit(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}
