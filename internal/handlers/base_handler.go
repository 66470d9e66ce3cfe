package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ExamForge-2025/exam-engine/internal/utils"
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the shared handler utilities.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs a handler entry with the request id already bound.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	if logger := utils.FromContext(c.Request.Context()); logger != nil {
		logger.Info(msg, args...)
		return
	}
	h.logger.Info(msg, args...)
}

// parseIDParam parses a positive uint path parameter; on failure it writes
// the 400 response itself and returns 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
		})
		return 0
	}
	return uint(id)
}

// parsePagination reads limit/offset query parameters with sane bounds.
func (h *BaseHandler) parsePagination(c *gin.Context) (limit, offset int) {
	limit = 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
