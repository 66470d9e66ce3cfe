package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

type ResultPostgreSQL struct {
	db *gorm.DB
}

func NewResultPostgreSQL(db *gorm.DB) repositories.ResultRepository {
	return &ResultPostgreSQL{db: db}
}

func (r *ResultPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create relies on the unique session_id index: a racing duplicate insert
// fails here and the caller re-reads the winner's row.
func (r *ResultPostgreSQL) Create(ctx context.Context, tx *gorm.DB, result *models.Result) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to create result: %w", err)
	}
	return nil
}

func (r *ResultPostgreSQL) GetBySession(ctx context.Context, tx *gorm.DB, sessionID uint) (*models.Result, error) {
	db := r.getDB(tx)
	var result models.Result
	if err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return &result, nil
}

func (r *ResultPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Result, error) {
	db := r.getDB(tx)
	var results []*models.Result
	if err := db.WithContext(ctx).
		Joins("JOIN exam_sessions ON exam_sessions.id = results.session_id").
		Where("exam_sessions.exam_id = ?", examID).
		Preload("Session").
		Preload("Session.Candidate").
		Order("results.percentage DESC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to get results by exam: %w", err)
	}
	return results, nil
}

func (r *ResultPostgreSQL) MarkEmailed(ctx context.Context, tx *gorm.DB, id uint) error {
	db := r.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.Result{}).
		Where("id = ?", id).
		Update("result_emailed", true).Error
}
