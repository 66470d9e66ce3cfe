package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

type CandidatePostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewCandidatePostgreSQL(db *gorm.DB) repositories.CandidateRepository {
	return &CandidatePostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (c *CandidatePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

func (c *CandidatePostgreSQL) Create(ctx context.Context, tx *gorm.DB, candidate *models.Candidate) error {
	db := c.getDB(tx)
	candidate.Email = strings.ToLower(strings.TrimSpace(candidate.Email))
	if err := db.WithContext(ctx).Create(candidate).Error; err != nil {
		return fmt.Errorf("failed to create candidate: %w", err)
	}
	return nil
}

func (c *CandidatePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Candidate, error) {
	db := c.getDB(tx)
	var candidate models.Candidate
	if err := db.WithContext(ctx).First(&candidate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return &candidate, nil
}

func (c *CandidatePostgreSQL) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Candidate, error) {
	db := c.getDB(tx)
	var candidate models.Candidate
	if err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get candidate by email: %w", err)
	}
	return &candidate, nil
}

func (c *CandidatePostgreSQL) Update(ctx context.Context, tx *gorm.DB, candidate *models.Candidate) error {
	db := c.getDB(tx)
	return db.WithContext(ctx).Save(candidate).Error
}

func (c *CandidatePostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.CandidateFilters) ([]*models.Candidate, int64, error) {
	db := c.getDB(tx)
	var candidates []*models.Candidate
	var total int64

	query := db.WithContext(ctx).Model(&models.Candidate{})
	if filters.Email != nil && *filters.Email != "" {
		query = query.Where("email ILIKE ?", "%"+*filters.Email+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = c.helpers.ApplyPaginationAndSort(query, "email", "asc", filters.Limit, filters.Offset)

	if err := query.Find(&candidates).Error; err != nil {
		return nil, 0, err
	}

	return candidates, total, nil
}
