package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/services"
	"github.com/ExamForge-2025/exam-engine/internal/utils"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
)

type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
	validator       *validator.Validator
}

func NewQuestionHandler(
	questionService services.QuestionService,
	v *validator.Validator,
	logger utils.Logger,
) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
		validator:       v,
	}
}

// CreateQuestion adds a question to the bank
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	h.LogRequest(c, "Creating question")

	var req services.CreateQuestionRequest
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

	question, err := h.questionService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// GetQuestion returns one question including its answer key
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	question, err := h.questionService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// UpdateQuestion updates question content
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating question", "question_id", id)

	var req services.UpdateQuestionRequest
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

	question, err := h.questionService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// DeleteQuestion removes a question unless an exam still references it
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting question", "question_id", id)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Question deleted successfully"})
}

// ListQuestions lists bank questions with filters
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	filters := h.parseQuestionFilters(c)

	response, err := h.questionService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetPoolCounts returns per-difficulty pool sizes for quota planning
func (h *QuestionHandler) GetPoolCounts(c *gin.Context) {
	counts, err := h.questionService.CountByDifficulty(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Question pool counts retrieved",
		Data:    counts,
	})
}

func (h *QuestionHandler) parseQuestionFilters(c *gin.Context) repositories.QuestionFilters {
	var filters repositories.QuestionFilters

	filters.Limit, filters.Offset = h.parsePagination(c)

	if raw := strings.TrimSpace(c.Query("difficulty")); raw != "" {
		difficulty := models.DifficultyLevel(raw)
		filters.Difficulty = &difficulty
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filters.Search = &search
	}
	if creator := strings.TrimSpace(c.Query("created_by")); creator != "" {
		filters.CreatedBy = &creator
	}
	if tags := c.QueryArray("tags"); len(tags) > 0 {
		filters.Tags = tags
	}

	filters.SortBy = c.DefaultQuery("sort_by", "created_at")
	filters.SortOrder = c.DefaultQuery("sort_order", "desc")

	return filters
}

func (h *QuestionHandler) handleServiceError(c *gin.Context, err error) {
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
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	case errors.Is(err, services.ErrQuestionInUse):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Question is referenced by an exam and cannot be deleted",
		})
	default:
		h.logger.Error("Unhandled question service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
