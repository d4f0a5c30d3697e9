package engine

// EventType classifies lifecycle events emitted by the Session Controller.
type EventType string

const (
	// EventStateChanged fires on every status transition.
	EventStateChanged EventType = "state_changed"
	// EventTimeWarning fires when remaining time crosses a warning threshold.
	EventTimeWarning EventType = "time_warning"
	// EventExpired fires when the clock crosses zero while active.
	EventExpired EventType = "expired"
	// EventSaveWarning fires when a best-effort snapshot save or load fails.
	EventSaveWarning EventType = "save_warning"
	// EventViolation fires when the integrity monitor records a signal.
	EventViolation EventType = "violation"
)

// Event is a lifecycle notification. The UI (or any transport layer) is a
// pure observer of controller state; it never co-owns it.
type Event struct {
	Type      EventType
	SessionID string
	Status    Status
	// Fraction is the crossed warning threshold for EventTimeWarning.
	Fraction float64
	// Signal is set for EventViolation.
	Signal SignalType
	// Err carries the underlying failure for EventSaveWarning.
	Err error
}

// Observer receives lifecycle events. Callbacks run synchronously inside the
// controller's serialized event loop and must not call back into it.
type Observer func(Event)
