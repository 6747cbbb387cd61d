package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/klasio/lms-backend/internal/config"
	"github.com/klasio/lms-backend/internal/middleware"
	"github.com/klasio/lms-backend/internal/model"
	"github.com/klasio/lms-backend/internal/service"
	"github.com/klasio/lms-backend/internal/session"
	ws "github.com/klasio/lms-backend/internal/websocket"
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

// WSHandler runs live quiz sessions over WebSocket. Each connection hosts one
// session.Controller: the read loop feeds student actions into it while the
// controller's clock pushes the expiry outcome back over the same connection.
type WSHandler struct {
	cfg            *config.Config
	store          session.Store
	quizService    *service.QuizService
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	cfg *config.Config,
	store session.Store,
	quizService *service.QuizService,
	attemptService *service.AttemptService,
	log zerolog.Logger,
) *WSHandler {
	return &WSHandler{
		cfg:            cfg,
		store:          store,
		quizService:    quizService,
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(cfg.AllowedOrigins),
	}
}

// submitterFor picks the grading path for one connection. With
// GRADING_SERVICE_URL set, attempts go out over HTTP with the student's own
// token; otherwise grading runs in process.
func (h *WSHandler) submitterFor(c *gin.Context, studentID int64) session.Submitter {
	if h.cfg.GradingServiceURL != "" {
		token := c.Query("token")
		return session.NewHTTPSubmitter(h.cfg.GradingServiceURL, nil, func() string { return token })
	}
	return h.attemptService.ForStudent(studentID)
}

// QuizSessionStream godoc
// WS /ws/v1/student/quizzes/:quiz_id/session
// Upgrades to WebSocket for a live quiz session: answer autosave, navigation,
// manual submit, and server-pushed expiry grading.
func (h *WSHandler) QuizSessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	quizID, err := strconv.ParseInt(c.Param("quiz_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quiz ID"})
		return
	}
	studentID := claims.UserID

	// Resolve the published payload before upgrading so a bad quiz id still
	// gets a proper HTTP status.
	quiz, err := h.quizService.GetQuizPayload(c.Request.Context(), quizID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "quiz not published"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int64("student_id", studentID).
		Int64("quiz_id", quizID).
		Logger()

	ctrl := session.NewController(session.Config{
		Quiz:      quiz,
		StudentID: studentID,
		Key:       config.CacheKey.QuizSessionKey(quizID, studentID),
		Store:     h.store,
		Submitter: h.submitterFor(c, studentID),
		Resolver:  session.StaticResolver{Base: h.cfg.ResultBasePath},
		OnExpiry: func(out session.Outcome) {
			h.pushExpiry(conn, wsLog, out)
		},
		Log: wsLog,
	})

	if err := ctrl.Start(c.Request.Context()); err != nil {
		wsLog.Error().Err(err).Msg("Session start failed")
		conn.WriteError("could not start session")
		return
	}
	// A connection drop without a finished submission keeps the persisted
	// state: the student resumes on reconnect.
	defer func() {
		if ctrl.Phase() != session.PhaseCompleted {
			ctrl.Abandon()
		}
	}()

	h.pushState(conn, quiz, ctrl)
	wsLog.Info().Msg("Student connected")

	for {
		var envelope ws.RequestEnvelope
		msg, err := conn.ReadRaw()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		if err := ws.Decode(msg, &envelope); err != nil {
			conn.WriteError("invalid message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(c, conn, ctrl, msg)
		case ws.ActionNavigate:
			h.handleNavigate(c, conn, ctrl, msg)
		case ws.ActionSubmit:
			h.handleSubmit(c, conn, wsLog, ctrl)
			if ctrl.Phase() == session.PhaseCompleted {
				return
			}
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(envelope.Action))
		}
	}
}

// pushState sends the full session snapshot after connect.
func (h *WSHandler) pushState(conn *ws.Conn, quiz *model.QuizPayload, ctrl *session.Controller) {
	answers, idx := ctrl.Snapshot()
	conn.WriteTyped(ws.StateResponse{
		Event:            ws.EventState,
		QuizID:           quiz.QuizID,
		Title:            quiz.Title,
		Questions:        ctrl.Questions(),
		Answers:          answers,
		CurrentIndex:     idx,
		RemainingSeconds: ctrl.Remaining(),
	})
}

func (h *WSHandler) handleAnswer(c *gin.Context, conn *ws.Conn, ctrl *session.Controller, msg []byte) {
	var req ws.AnswerRequest
	if err := ws.Decode(msg, &req); err != nil {
		conn.WriteError("invalid answer payload")
		return
	}

	if err := ctrl.Answer(c.Request.Context(), req.QuestionID, req.Option); err != nil {
		conn.WriteError(answerErrMessage(err))
		return
	}
	conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, QuestionID: req.QuestionID})
}

func answerErrMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrUnknownQuestion):
		return "unknown question"
	case errors.Is(err, session.ErrUnknownOption):
		return "unknown option"
	case errors.Is(err, session.ErrNotInProgress):
		return "session is not in progress"
	default:
		return "save failed"
	}
}

func (h *WSHandler) handleNavigate(c *gin.Context, conn *ws.Conn, ctrl *session.Controller, msg []byte) {
	var req ws.NavigateRequest
	if err := ws.Decode(msg, &req); err != nil {
		conn.WriteError("invalid navigate payload")
		return
	}

	ctx := c.Request.Context()
	var err error
	switch {
	case req.Index != nil:
		err = ctrl.Navigate(ctx, *req.Index)
	case req.Direction == "next":
		err = ctrl.Next(ctx)
	case req.Direction == "prev":
		err = ctrl.Prev(ctx)
	default:
		conn.WriteError("navigate needs an index or a direction")
		return
	}
	if err != nil {
		conn.WriteError("navigation failed")
		return
	}

	_, idx := ctrl.Snapshot()
	conn.WriteTyped(ws.PositionResponse{Event: ws.EventPosition, Index: idx})
}

func (h *WSHandler) handleSubmit(c *gin.Context, conn *ws.Conn, wsLog zerolog.Logger, ctrl *session.Controller) {
	result, err := ctrl.Submit(c.Request.Context(), session.ReasonManual)
	if err != nil {
		// Losing the race to the expiry trigger is not an error for the
		// student: the expiry push carries the outcome.
		if errors.Is(err, session.ErrSubmitInFlight) {
			return
		}
		wsLog.Warn().Err(err).Msg("Manual submit failed")
		var serr *session.SubmissionError
		if errors.As(err, &serr) {
			conn.WriteError(serr.Message)
			return
		}
		conn.WriteError("submission failed, please try again")
		return
	}

	wsLog.Info().
		Float64("score", result.Score).
		Int("correct", result.CorrectCount).
		Int("total", result.TotalQuestions).
		Msg("Quiz submitted and graded")

	conn.WriteTyped(ws.GradedResponse{
		Event:          ws.EventGraded,
		Reason:         string(session.ReasonManual),
		Score:          result.Score,
		CorrectCount:   result.CorrectCount,
		TotalQuestions: result.TotalQuestions,
		RedirectPath:   ctrl.ResultPath(),
	})
}

// pushExpiry delivers the clock-triggered outcome. Runs on the clock
// goroutine; Conn serializes the write against the read-loop replies.
func (h *WSHandler) pushExpiry(conn *ws.Conn, wsLog zerolog.Logger, out session.Outcome) {
	if out.Err != nil {
		wsLog.Warn().Err(out.Err).Msg("Expiry auto-submit failed")
		var serr *session.SubmissionError
		if errors.As(out.Err, &serr) {
			conn.WriteError(serr.Message)
			return
		}
		conn.WriteError("time is up, but submission failed. please submit manually")
		return
	}

	wsLog.Info().Float64("score", out.Result.Score).Msg("Session expired and auto-submitted")
	conn.WriteTyped(ws.GradedResponse{
		Event:          ws.EventGraded,
		Reason:         string(session.ReasonExpiry),
		Score:          out.Result.Score,
		CorrectCount:   out.Result.CorrectCount,
		TotalQuestions: out.Result.TotalQuestions,
		RedirectPath:   out.RedirectPath,
	})
}
