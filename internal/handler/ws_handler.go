package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/certlab/examd/internal/engine"
	"github.com/certlab/examd/internal/middleware"
	"github.com/certlab/examd/internal/model"
	"github.com/certlab/examd/internal/service"
	ws "github.com/certlab/examd/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsConn serializes writes to a single WebSocket connection. The read loop
// and the event forwarder both write to the same socket.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws.WriteError(w.conn, msg)
}

// WSHandler handles WebSocket session streaming.
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Upgrades to WebSocket for low-latency answering, navigation and lifecycle
// event delivery on a live session.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sessionID := c.Param("session_id")

	// Subscribe before upgrading so a dead session fails with a proper
	// HTTP status instead of an immediate close.
	events, unsubscribe, err := h.sessions.Subscribe(claims.CandidateID, sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no live session"})
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sock := &wsConn{conn: conn}

	wsLog := h.log.With().
		Str("candidate_id", claims.CandidateID).
		Str("session_id", sessionID).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	done := make(chan struct{})
	defer close(done)
	go h.forwardEvents(sock, events, done)

	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			sock.writeError("invalid payload")
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(c.Request.Context(), sock, claims.CandidateID, sessionID, raw)
		case ws.ActionNavigate:
			h.handleNavigate(c.Request.Context(), sock, claims.CandidateID, sessionID, raw)
		case ws.ActionFlag:
			h.handleFlag(sock, claims.CandidateID, sessionID, raw)
		case ws.ActionIntegrity:
			h.handleIntegrity(c.Request.Context(), sock, claims.CandidateID, sessionID, raw)
		case ws.ActionPing:
			sock.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			sock.writeError("unknown action: " + string(envelope.Action))
		}
	}
}

// forwardEvents pushes controller lifecycle events to the client until the
// connection goes away.
func (h *WSHandler) forwardEvents(sock *wsConn, events <-chan engine.Event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case engine.EventStateChanged:
				sock.write(ws.StateResponse{Event: ws.EventState, Status: string(ev.Status)})
			case engine.EventTimeWarning:
				sock.write(ws.StateResponse{Event: ws.EventTimeWarning, Status: string(ev.Status), Fraction: ev.Fraction})
			case engine.EventExpired:
				sock.write(ws.StateResponse{Event: ws.EventExpired, Status: string(ev.Status)})
			case engine.EventSaveWarning:
				sock.write(ws.ErrorResponse{Event: ws.EventSaveWarning, Error: "checkpoint save failed"})
			}
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, sock *wsConn, candidateID, sessionID string, raw []byte) {
	var msg ws.AnswerRequest
	if err := json.Unmarshal(raw, &msg); err != nil || msg.QID == "" || len(msg.Selection) == 0 {
		sock.writeError("q_id and selection are required")
		return
	}

	feedback, err := h.sessions.SubmitAnswer(ctx, candidateID, sessionID, &model.SubmitAnswerRequest{
		QuestionID: msg.QID,
		Selection:  msg.Selection,
	})
	if err != nil {
		sock.write(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}

	if feedback != nil {
		sock.write(ws.FeedbackResponse{
			Event:            ws.EventFeedback,
			Correct:          feedback.Correct,
			CorrectOptionIDs: feedback.CorrectOptionIDs,
			Explanation:      feedback.Explanation,
		})
		return
	}
	sock.write(ws.AckResponse{Event: ws.EventSuccess, Status: "saved"})
}

func (h *WSHandler) handleNavigate(ctx context.Context, sock *wsConn, candidateID, sessionID string, raw []byte) {
	var msg ws.NavigateRequest
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Target < 0 {
		sock.writeError("target is required")
		return
	}

	if _, err := h.sessions.Advance(ctx, candidateID, sessionID, msg.Target); err != nil {
		sock.write(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}
	sock.write(ws.AckResponse{Event: ws.EventSuccess, Status: "moved"})
}

func (h *WSHandler) handleFlag(sock *wsConn, candidateID, sessionID string, raw []byte) {
	var msg ws.FlagRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		sock.writeError("invalid flag payload")
		return
	}

	if err := h.sessions.Flag(candidateID, sessionID, msg.Flagged); err != nil {
		sock.write(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}
	sock.write(ws.AckResponse{Event: ws.EventSuccess, Status: "flagged"})
}

func (h *WSHandler) handleIntegrity(ctx context.Context, sock *wsConn, candidateID, sessionID string, raw []byte) {
	var msg ws.IntegrityRequest
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Signal == "" {
		sock.writeError("signal is required")
		return
	}

	if err := h.sessions.RecordViolation(ctx, candidateID, sessionID, engine.SignalType(msg.Signal)); err != nil {
		sock.write(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}
	sock.write(ws.AckResponse{Event: ws.EventSuccess, Status: "recorded"})
}
