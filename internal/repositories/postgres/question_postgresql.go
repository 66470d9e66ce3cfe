package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ExamForge-2025/exam-engine/internal/cache"
	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	q.cacheManager.InvalidateQuestion(ctx, question.ID)
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var question models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &question, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestion models.Question
		if err := db.WithContext(ctx).First(&dbQuestion, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get question: %w", err)
		}
		return &dbQuestion, nil
	})

	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	q.cacheManager.InvalidateQuestion(ctx, question.ID)
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	q.cacheManager.InvalidateQuestion(ctx, id)
	return nil
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	db := q.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions by ids: %w", err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) GetByDifficulty(ctx context.Context, tx *gorm.DB, difficulty models.DifficultyLevel) ([]*models.Question, error) {
	db := q.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).
		Where("difficulty = ?", difficulty).
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions by difficulty: %w", err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	db := q.getDB(tx)
	var questions []*models.Question
	var total int64

	// apply filter first
	query := db.WithContext(ctx).Model(&models.Question{})
	query = q.helpers.ApplyQuestionFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = q.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&questions).Error; err != nil {
		return nil, 0, err
	}

	return questions, total, nil
}

func (q *QuestionPostgreSQL) CountByDifficulty(ctx context.Context, tx *gorm.DB) (*repositories.QuestionPoolCounts, error) {
	db := q.getDB(tx)

	var rows []struct {
		Difficulty models.DifficultyLevel
		Count      int
	}
	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Select("difficulty, COUNT(*) as count").
		Group("difficulty").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count questions by difficulty: %w", err)
	}

	counts := &repositories.QuestionPoolCounts{}
	for _, row := range rows {
		switch row.Difficulty {
		case models.DifficultyEasy:
			counts.Easy = row.Count
		case models.DifficultyMedium:
			counts.Medium = row.Count
		case models.DifficultyHard:
			counts.Hard = row.Count
		}
	}
	return counts, nil
}

func (q *QuestionPostgreSQL) IsUsedInExams(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := q.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Where("question_id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
