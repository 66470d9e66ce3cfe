package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/services"
	"github.com/ExamForge-2025/exam-engine/internal/utils"
)

type CandidateHandler struct {
	BaseHandler
	candidateService services.CandidateService
}

func NewCandidateHandler(candidateService services.CandidateService, logger utils.Logger) *CandidateHandler {
	return &CandidateHandler{
		BaseHandler:      NewBaseHandler(logger),
		candidateService: candidateService,
	}
}

// GetCandidate returns one candidate profile
func (h *CandidateHandler) GetCandidate(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	candidate, err := h.candidateService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, candidate)
}

// ListCandidates lists the directory with optional email filter
func (h *CandidateHandler) ListCandidates(c *gin.Context) {
	var filters repositories.CandidateFilters
	filters.Limit, filters.Offset = h.parsePagination(c)

	if email := strings.TrimSpace(c.Query("email")); email != "" {
		filters.Email = &email
	}

	candidates, total, err := h.candidateService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"candidates": candidates,
		"total":      total,
	})
}

func (h *CandidateHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCandidateNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Candidate not found",
		})
	default:
		h.logger.Error("Unhandled candidate service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
