package repositories

import (
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	IsActive  *bool      `json:"is_active"`
	CreatedBy *string    `json:"created_by"`
	Search    *string    `json:"search"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "name"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

type QuestionFilters struct {
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	CreatedBy  *string                 `json:"created_by"`
	Search     *string                 `json:"search"`
	Tags       []string                `json:"tags"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
	SortBy     string                  `json:"sort_by"`
	SortOrder  string                  `json:"sort_order"`
}

type SessionFilters struct {
	Submitted     *bool      `json:"submitted"`
	AutoSubmitted *bool      `json:"auto_submitted"`
	ExamID        *uint      `json:"exam_id"`
	CandidateID   *uint      `json:"candidate_id"`
	DateFrom      *time.Time `json:"date_from"`
	DateTo        *time.Time `json:"date_to"`
	Limit         int        `json:"limit"`
	Offset        int        `json:"offset"`
	SortBy        string     `json:"sort_by"`
	SortOrder     string     `json:"sort_order"`
}

type CandidateFilters struct {
	Email  *string `json:"email"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type ExamStats struct {
	TotalSessions     int     `json:"total_sessions"`
	SubmittedSessions int     `json:"submitted_sessions"`
	AutoSubmitted     int     `json:"auto_submitted"`
	AverageScore      float64 `json:"average_score"`
	QuestionCount     int     `json:"question_count"`
}

type QuestionPoolCounts struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}
