package engine

import "time"

// SignalType classifies an integrity-monitor observation during a formal
// session.
type SignalType string

const (
	SignalWindowBlur     SignalType = "window_blur"
	SignalTabHidden      SignalType = "tab_hidden"
	SignalDevtoolsOpen   SignalType = "devtools_open"
	SignalForbiddenKeys  SignalType = "forbidden_keys"
	SignalFullscreenExit SignalType = "fullscreen_exit"
)

// Violation is one recorded integrity observation. Violations are metadata
// for later audit, not enforcement actions.
type Violation struct {
	Type      SignalType `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
}

// IntegrityMonitor passively collects violations for a formal session. It
// never pauses the clock and never blocks candidate input. The Session
// Controller serializes all access.
type IntegrityMonitor struct {
	violations []Violation
}

// NewIntegrityMonitor creates an empty monitor.
func NewIntegrityMonitor() *IntegrityMonitor {
	return &IntegrityMonitor{}
}

// Record appends a violation. The list is append-only for the session's
// lifetime; entries are only summarized at submission time.
func (m *IntegrityMonitor) Record(t SignalType, at time.Time) {
	m.violations = append(m.violations, Violation{Type: t, Timestamp: at})
}

// Count returns the number of recorded violations.
func (m *IntegrityMonitor) Count() int { return len(m.violations) }

// Violations returns a read-only copy of the recorded violations.
func (m *IntegrityMonitor) Violations() []Violation {
	out := make([]Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

// restore replaces the violation list when resuming from a snapshot.
func (m *IntegrityMonitor) restore(vs []Violation) {
	m.violations = append(m.violations[:0], vs...)
}
