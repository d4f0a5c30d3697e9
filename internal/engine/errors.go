package engine

import "fmt"

// ConfigurationError indicates a session could not be started with the given
// configuration. Fatal to Start; the session never becomes active.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// InvalidAnswerError indicates a malformed selection. Recoverable; session
// state is unchanged and the caller should re-prompt.
type InvalidAnswerError struct {
	QuestionID string
	Reason     string
}

func (e *InvalidAnswerError) Error() string {
	return fmt.Sprintf("invalid answer for question %s: %s", e.QuestionID, e.Reason)
}

// NavigationForbiddenError indicates a navigation request that the session
// mode does not permit (backward movement in formal mode). Recoverable.
type NavigationForbiddenError struct {
	From, To int
}

func (e *NavigationForbiddenError) Error() string {
	return fmt.Sprintf("navigation from position %d to %d is forbidden in this mode", e.From, e.To)
}

// OperationForbiddenError indicates an operation that the current mode or
// state does not permit (pausing a formal session, starting twice).
type OperationForbiddenError struct {
	Op     string
	Mode   Mode
	Status Status
}

func (e *OperationForbiddenError) Error() string {
	return fmt.Sprintf("operation %q forbidden (mode=%s, status=%s)", e.Op, e.Mode, e.Status)
}

// SessionExpiredError indicates a submission arrived after the clock crossed
// zero. The caller must refresh to results.
type SessionExpiredError struct {
	SessionID string
}

func (e *SessionExpiredError) Error() string {
	return "session " + e.SessionID + " has expired"
}

// PersistenceWarning wraps a snapshot save or load failure. Non-fatal: the
// in-memory session remains authoritative until the next successful save.
type PersistenceWarning struct {
	Err error
}

func (e *PersistenceWarning) Error() string {
	return "persistence warning: " + e.Err.Error()
}

func (e *PersistenceWarning) Unwrap() error { return e.Err }

// StoreUnavailableError indicates a Question Store or Result Store failure.
// Fatal to the operation in progress; session state remains valid for retry.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }
