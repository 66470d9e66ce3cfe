package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ExamForge-2025/exam-engine/internal/services"
	"github.com/ExamForge-2025/exam-engine/internal/utils"
)

type ResultHandler struct {
	BaseHandler
	resultService services.ResultService
}

func NewResultHandler(resultService services.ResultService, logger utils.Logger) *ResultHandler {
	return &ResultHandler{
		BaseHandler:   NewBaseHandler(logger),
		resultService: resultService,
	}
}

// GetSessionResult returns the score of one session
func (h *ResultHandler) GetSessionResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	result, err := h.resultService.GetBySession(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetExamResults returns all results of an exam ordered by score
func (h *ResultHandler) GetExamResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	results, err := h.resultService.GetByExam(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}

// ExportExamResults streams an XLSX workbook of an exam's results
func (h *ResultHandler) ExportExamResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Exporting exam results", "exam_id", examID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	workbook, err := h.resultService.ExportExcel(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("exam-%d-results-%s.xlsx", examID, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}

// MarkResultEmailed records external mail delivery for a result
func (h *ResultHandler) MarkResultEmailed(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.resultService.MarkEmailed(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Result marked as emailed"})
}

func (h *ResultHandler) handleServiceError(c *gin.Context, err error) {
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
	case errors.Is(err, services.ErrResultNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Result not found",
		})
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
		})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	default:
		h.logger.Error("Unhandled result service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
