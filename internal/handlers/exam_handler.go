package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/services"
	"github.com/ExamForge-2025/exam-engine/internal/utils"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
)

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
	validator   *validator.Validator
}

func NewExamHandler(
	examService services.ExamService,
	v *validator.Validator,
	logger utils.Logger,
) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
		validator:   v,
	}
}

// CreateExam creates a new exam
// @Summary Create exam
// @Description Creates an exam with a generated access code; the question set is fixed at creation
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body services.CreateExamRequest true "Exam data"
// @Success 201 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	h.LogRequest(c, "Creating exam")

	var req services.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// GetExam returns one exam
func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// GetExamWithDetails returns one exam with its question set
func (h *ExamHandler) GetExamWithDetails(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	exam, err := h.examService.GetByIDWithDetails(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// UpdateExam updates exam metadata
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating exam", "exam_id", id)

	var req services.UpdateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// DeleteExam deletes an exam
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting exam", "exam_id", id)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam deleted successfully"})
}

// ListExams lists exams with filters
func (h *ExamHandler) ListExams(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	filters := h.parseExamFilters(c)

	response, err := h.examService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetExamsByCreator lists the calling examiner's exams
func (h *ExamHandler) GetExamsByCreator(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	filters := h.parseExamFilters(c)

	response, err := h.examService.GetByCreator(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SetExamActive flips the exam's active flag
func (h *ExamHandler) SetExamActive(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload, active flag is required",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Setting exam active flag", "exam_id", id, "active", *req.Active)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.examService.SetActive(c.Request.Context(), id, *req.Active, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam active flag updated"})
}

// SetExamQuestions replaces the exam's question set with explicit ids
func (h *ExamHandler) SetExamQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req struct {
		QuestionIDs []uint `json:"question_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload, question_ids is required",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Setting exam questions", "exam_id", id, "count", len(req.QuestionIDs))

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.examService.SetQuestions(c.Request.Context(), id, req.QuestionIDs, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam questions updated"})
}

// SelectExamQuestions redraws the question set from the difficulty quotas
func (h *ExamHandler) SelectExamQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Selecting exam questions by quota", "exam_id", id)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.examService.SelectByQuota(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam questions selected"})
}

// InviteCandidate invites a candidate by email
func (h *ExamHandler) InviteCandidate(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req struct {
		Email string `json:"email" binding:"required,email"`
		Name  string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Inviting candidate", "exam_id", id)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.examService.InviteCandidate(c.Request.Context(), id, req.Email, req.Name, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Candidate invited"})
}

// GetExamStats returns aggregate session statistics for an exam
func (h *ExamHandler) GetExamStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	stats, err := h.examService.GetStats(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Exam stats retrieved",
		Data:    stats,
	})
}

func (h *ExamHandler) parseExamFilters(c *gin.Context) repositories.ExamFilters {
	var filters repositories.ExamFilters

	filters.Limit, filters.Offset = h.parsePagination(c)

	if raw := c.Query("is_active"); raw == "true" || raw == "false" {
		active := raw == "true"
		filters.IsActive = &active
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filters.Search = &search
	}
	if creator := strings.TrimSpace(c.Query("created_by")); creator != "" {
		filters.CreatedBy = &creator
	}

	filters.SortBy = c.DefaultQuery("sort_by", "created_at")
	filters.SortOrder = c.DefaultQuery("sort_order", "desc")

	return filters
}

func (h *ExamHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var serviceValidation *services.ValidationError
	if errors.As(err, &serviceValidation) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: serviceValidation,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"code":    businessRuleError.Code,
				"context": businessRuleError.Context,
			},
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
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "One or more questions not found",
		})
	case errors.Is(err, services.ErrDuplicateAccessCode):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Could not allocate a unique access code",
		})
	case errors.Is(err, services.ErrInsufficientQuestions):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Not enough questions to satisfy the difficulty quota",
		})
	default:
		h.logger.Error("Unhandled exam service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
