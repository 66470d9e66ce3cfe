package postgres

import (
	"context"
	"encoding/json"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

// SharedHelpers contains common database operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// CountSessions counts sessions for an exam
func (h *SharedHelpers) CountSessions(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.ExamSession{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	return count, err
}

// CountSubmittedSessions counts finished sessions for an exam
func (h *SharedHelpers) CountSubmittedSessions(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.ExamSession{}).
		Where("exam_id = ? AND submitted = ?", examID, true).
		Count(&count).Error
	return count, err
}

// ApplyExamFilters applies common filters to exam queries
func (h *SharedHelpers) ApplyExamFilters(query *gorm.DB, filters repositories.ExamFilters) *gorm.DB {
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Search != nil && *filters.Search != "" {
		query = query.Where("name ILIKE ?", "%"+*filters.Search+"%")
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplySessionFilters applies common filters to session queries
func (h *SharedHelpers) ApplySessionFilters(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.CandidateID != nil {
		query = query.Where("candidate_id = ?", *filters.CandidateID)
	}
	if filters.Submitted != nil {
		query = query.Where("submitted = ?", *filters.Submitted)
	}
	if filters.AutoSubmitted != nil {
		query = query.Where("auto_submitted = ?", *filters.AutoSubmitted)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyQuestionFilters applies common filters to question queries
func (h *SharedHelpers) ApplyQuestionFilters(query *gorm.DB, filters repositories.QuestionFilters) *gorm.DB {
	if filters.Difficulty != nil {
		query = query.Where("difficulty = ?", *filters.Difficulty)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Search != nil && *filters.Search != "" {
		query = query.Where("text ILIKE ?", "%"+*filters.Search+"%")
	}
	if len(filters.Tags) > 0 {
		wanted, _ := json.Marshal(filters.Tags)
		query = query.Where("tags @> ?", string(wanted))
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	// Whitelist allowed sort columns
	allowedSortColumns := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"id":           true,
		"name":         true,
		"difficulty":   true,
		"started_at":   true,
		"submitted_at": true,
		"email":        true,
	}

	// Validate and set sort column
	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	// Validate and set sort order
	if sortOrder != "asc" && sortOrder != "ASC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
