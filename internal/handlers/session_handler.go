package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/services"
	"github.com/ExamForge-2025/exam-engine/internal/utils"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
)

// SessionHandler serves both surfaces of the session lifecycle: the public
// candidate routes (start, save, submit, countdown) and the authenticated
// examiner reads. Candidate routes carry no identity token; possession of
// the access code and session id is the taker's credential.
type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	validator      *validator.Validator
}

func NewSessionHandler(
	sessionService services.SessionService,
	v *validator.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		validator:      v,
	}
}

// StartSession starts or resumes the taker's session
// @Summary Start exam session
// @Description Starts a session for an access code, or resumes the existing unsubmitted one
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.StartSessionRequest true "Start session data"
// @Success 201 {object} services.SessionView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /take/sessions/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.LogRequest(c, "Starting exam session")

	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	view, err := h.sessionService.Start(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// GetSession returns the taker's view of a session
// @Summary Get session
// @Description Returns the session view; an expired active session is finalized first
// @Tags sessions
// @Produce json
// @Param id path uint true "Session ID"
// @Success 200 {object} services.SessionView
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /take/sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	view, err := h.sessionService.Get(c.Request.Context(), id, false)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetSessionPrivileged returns the session view with the answer key attached
// @Summary Get session (examiner)
// @Description Returns the session view including correct indices
// @Tags sessions
// @Produce json
// @Param id path uint true "Session ID"
// @Success 200 {object} services.SessionView
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSessionPrivileged(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting session with key", "session_id", id)

	view, err := h.sessionService.Get(c.Request.Context(), id, true)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SaveAnswers merges partial answer selections into the session
// @Summary Save answers
// @Description Merges the given selections into matching slots; unnamed slots stay untouched
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path uint true "Session ID"
// @Param answers body services.SaveAnswersRequest true "Answer selections"
// @Success 200 {object} services.SessionView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /take/sessions/{id}/answers [post]
func (h *SessionHandler) SaveAnswers(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SaveAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	view, err := h.sessionService.SaveAnswers(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitSession finalizes the session and returns its score
// @Summary Submit session
// @Description Finalizes the session; optional final selections are merged first
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path uint true "Session ID"
// @Param answers body services.SubmitSessionRequest false "Final answer selections"
// @Success 200 {object} services.ResultView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /take/sessions/{id}/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Submitting session", "session_id", id)

	var req services.SubmitSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	result, err := h.sessionService.Submit(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTimeRemaining projects the current countdown value
// @Summary Get remaining time
// @Description Returns remaining seconds; observing zero finalizes the session
// @Tags sessions
// @Produce json
// @Param id path uint true "Session ID"
// @Success 200 {object} SuccessResponse{data=int}
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /take/sessions/{id}/time-remaining [get]
func (h *SessionHandler) GetTimeRemaining(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	remaining, err := h.sessionService.TimeRemaining(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Time remaining retrieved",
		Data:    gin.H{"remaining_seconds": remaining},
	})
}

// ListSessions lists sessions across exams (examiner)
// @Summary List sessions
// @Tags sessions
// @Produce json
// @Success 200 {object} services.SessionListResponse
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	filters := h.parseSessionFilters(c)

	response, err := h.sessionService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetSessionsByExam lists one exam's sessions (examiner)
// @Summary List exam sessions
// @Tags sessions
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.SessionListResponse
// @Router /exams/{id}/sessions [get]
func (h *SessionHandler) GetSessionsByExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	filters := h.parseSessionFilters(c)

	response, err := h.sessionService.GetByExam(c.Request.Context(), examID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *SessionHandler) parseSessionFilters(c *gin.Context) repositories.SessionFilters {
	var filters repositories.SessionFilters

	filters.Limit, filters.Offset = h.parsePagination(c)

	if raw := c.Query("submitted"); raw == "true" || raw == "false" {
		submitted := raw == "true"
		filters.Submitted = &submitted
	}
	if raw := c.Query("auto_submitted"); raw == "true" || raw == "false" {
		auto := raw == "true"
		filters.AutoSubmitted = &auto
	}

	filters.SortBy = c.DefaultQuery("sort_by", "started_at")
	filters.SortOrder = c.DefaultQuery("sort_order", "desc")

	return filters
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
		})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrExamNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam is not active",
		})
	case errors.Is(err, services.ErrExamNotYetOpen):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam window has not opened yet",
		})
	case errors.Is(err, services.ErrExamWindowClosed):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam window has closed",
		})
	case errors.Is(err, services.ErrSessionAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session already submitted",
		})
	case errors.Is(err, services.ErrSessionTimeExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Session time has expired",
		})
	default:
		h.logger.Error("Unhandled session service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
