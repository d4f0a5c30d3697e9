package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/certlab/examd/internal/engine"
	"github.com/certlab/examd/internal/middleware"
	"github.com/certlab/examd/internal/model"
	"github.com/certlab/examd/internal/response"
	"github.com/certlab/examd/internal/service"
	"github.com/certlab/examd/internal/validator"
)

// SessionHandler exposes the session lifecycle over REST. The WebSocket
// stream in WSHandler covers the same operations for connected clients; both
// go through the same SessionService.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// failSession translates session and engine errors into API responses.
func failSession(c *gin.Context, err error) {
	var (
		cfgErr   *engine.ConfigurationError
		ansErr   *engine.InvalidAnswerError
		navErr   *engine.NavigationForbiddenError
		opErr    *engine.OperationForbiddenError
		expErr   *engine.SessionExpiredError
		storeErr *engine.StoreUnavailableError
	)
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrNotSessionOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrSessionBusy):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
	case errors.As(err, &cfgErr):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrConfiguration)
	case errors.As(err, &ansErr):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAnswer)
	case errors.As(err, &navErr):
		response.Fail(c, http.StatusForbidden, response.ErrNavigationForbidden)
	case errors.As(err, &expErr):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.As(err, &opErr):
		response.Fail(c, http.StatusConflict, response.ErrOperationForbidden)
	case errors.As(err, &storeErr):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// Start godoc
// POST /api/v1/sessions
// Starts a new session, or resumes one when session_id is provided.
func (h *SessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessions.Start(c.Request.Context(), claims.CandidateID, &req)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// History godoc
// GET /api/v1/sessions
// Lists the candidate's past and current sessions.
func (h *SessionHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)

	records, err := h.sessions.History(c.Request.Context(), claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if records == nil {
		records = []model.SessionRecord{}
	}
	response.Success(c, http.StatusOK, records)
}

// State godoc
// GET /api/v1/sessions/:session_id
// Returns the live state of a session.
func (h *SessionHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)

	view, err := h.sessions.View(claims.CandidateID, c.Param("session_id"))
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// SubmitAnswer godoc
// POST /api/v1/sessions/:session_id/answers
// Answers the current question. Practice sessions get instant feedback.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	feedback, err := h.sessions.SubmitAnswer(c.Request.Context(), claims.CandidateID, c.Param("session_id"), &req)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"feedback": feedback})
}

// Advance godoc
// POST /api/v1/sessions/:session_id/advance
// Moves the session to another question.
func (h *SessionHandler) Advance(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.AdvanceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessions.Advance(c.Request.Context(), claims.CandidateID, c.Param("session_id"), req.Target)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Flag godoc
// POST /api/v1/sessions/:session_id/flag
// Flags or unflags the current question.
func (h *SessionHandler) Flag(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.FlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.Flag(claims.CandidateID, c.Param("session_id"), req.Flagged); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Pause godoc
// POST /api/v1/sessions/:session_id/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	claims := middleware.GetClaims(c)

	if err := h.sessions.Pause(c.Request.Context(), claims.CandidateID, c.Param("session_id")); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Resume godoc
// POST /api/v1/sessions/:session_id/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	claims := middleware.GetClaims(c)

	if err := h.sessions.Resume(claims.CandidateID, c.Param("session_id")); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Finish godoc
// POST /api/v1/sessions/:session_id/finish
// Submits the session for scoring and returns the finalized result.
func (h *SessionHandler) Finish(c *gin.Context) {
	claims := middleware.GetClaims(c)

	result, err := h.sessions.Finish(c.Request.Context(), claims.CandidateID, c.Param("session_id"))
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, model.SessionResultView{
		Result:     result,
		FinishedAt: time.Now().UTC(),
	})
}

// Result godoc
// GET /api/v1/sessions/:session_id/result
// Returns the finalized result, live or historical.
func (h *SessionHandler) Result(c *gin.Context) {
	claims := middleware.GetClaims(c)

	result, err := h.sessions.Result(c.Request.Context(), claims.CandidateID, c.Param("session_id"))
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// EnterReview godoc
// POST /api/v1/sessions/:session_id/review
// Switches a completed session into read-only review.
func (h *SessionHandler) EnterReview(c *gin.Context) {
	claims := middleware.GetClaims(c)

	if err := h.sessions.EnterReview(claims.CandidateID, c.Param("session_id")); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ReviewEntry godoc
// GET /api/v1/sessions/:session_id/review/:position
// Returns the review view of one question, including correctness and
// explanation.
func (h *SessionHandler) ReviewEntry(c *gin.Context) {
	claims := middleware.GetClaims(c)

	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	entry, err := h.sessions.ReviewEntry(claims.CandidateID, c.Param("session_id"), position)
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, entry)
}

// RecordViolation godoc
// POST /api/v1/sessions/:session_id/violations
// Reports an integrity signal on a formal session.
func (h *SessionHandler) RecordViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.SignalRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessions.RecordViolation(c.Request.Context(), claims.CandidateID, c.Param("session_id"), engine.SignalType(req.Type))
	if err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{})
}

// Close godoc
// DELETE /api/v1/sessions/:session_id
// Releases the in-memory controller. Active sessions checkpoint first and
// stay resumable.
func (h *SessionHandler) Close(c *gin.Context) {
	claims := middleware.GetClaims(c)

	if err := h.sessions.Close(c.Request.Context(), claims.CandidateID, c.Param("session_id")); err != nil {
		failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}
