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

type ExamPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}

	e.cacheManager.InvalidateExam(ctx, exam.ID)
	return nil
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var exam models.Exam

	err := e.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := db.WithContext(ctx).First(&dbExam, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get exam: %w", err)
		}
		return &dbExam, nil
	})

	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("exam_questions.\"order\" ASC")
		}).
		Preload("Questions.Question").
		Preload("Candidates").
		First(&exam, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Save(exam).Error; err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}

	e.cacheManager.InvalidateExam(ctx, exam.ID)
	return nil
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.Exam{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	e.cacheManager.InvalidateExam(ctx, id)
	return nil
}

func (e *ExamPostgreSQL) GetByAccessCode(ctx context.Context, tx *gorm.DB, accessCode string) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).
		Where("access_code = ?", accessCode).
		First(&exam).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exam by access code: %w", err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) ExistsByAccessCode(ctx context.Context, tx *gorm.DB, accessCode string) (bool, error) {
	db := e.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("access_code = ?", accessCode).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	db := e.getDB(tx)
	var exams []*models.Exam
	var total int64

	// apply filter first
	query := db.WithContext(ctx).Model(&models.Exam{})
	query = e.helpers.ApplyExamFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, err
	}

	return exams, total, nil
}

func (e *ExamPostgreSQL) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	filters.CreatedBy = &creatorID
	return e.List(ctx, tx, filters)
}

// SetQuestions replaces the exam's question set, assigning authoring order.
func (e *ExamPostgreSQL) SetQuestions(ctx context.Context, tx *gorm.DB, examID uint, questionIDs []uint) error {
	db := e.getDB(tx)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exam_id = ?", examID).Delete(&models.ExamQuestion{}).Error; err != nil {
			return fmt.Errorf("failed to clear exam questions: %w", err)
		}

		if len(questionIDs) == 0 {
			return nil
		}

		rows := make([]models.ExamQuestion, 0, len(questionIDs))
		for i, qid := range questionIDs {
			rows = append(rows, models.ExamQuestion{
				ExamID:     examID,
				QuestionID: qid,
				Order:      i,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to attach questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.cacheManager.InvalidateExam(ctx, examID)
	return nil
}

func (e *ExamPostgreSQL) GetQuestionIDs(ctx context.Context, tx *gorm.DB, examID uint) ([]uint, error) {
	db := e.getDB(tx)
	var ids []uint
	if err := db.WithContext(ctx).
		Model(&models.ExamQuestion{}).
		Where("exam_id = ?", examID).
		Order("\"order\" ASC").
		Pluck("question_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get exam question ids: %w", err)
	}
	return ids, nil
}

func (e *ExamPostgreSQL) AddCandidate(ctx context.Context, tx *gorm.DB, examID, candidateID uint) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).
		Exec("INSERT INTO exam_candidates (exam_id, candidate_id) VALUES (?, ?) ON CONFLICT DO NOTHING", examID, candidateID).Error
}

func (e *ExamPostgreSQL) HasCandidate(ctx context.Context, tx *gorm.DB, examID, candidateID uint) (bool, error) {
	db := e.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Table("exam_candidates").
		Where("exam_id = ? AND candidate_id = ?", examID, candidateID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (e *ExamPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.ExamStats, error) {
	db := e.getDB(tx)
	cacheKey := fmt.Sprintf("exam:%d", examID)
	var stats repositories.ExamStats

	err := e.cacheManager.Stats.CacheOrExecute(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		var fresh repositories.ExamStats

		total, err := e.helpers.CountSessions(ctx, examID)
		if err != nil {
			return nil, err
		}
		fresh.TotalSessions = int(total)

		submitted, err := e.helpers.CountSubmittedSessions(ctx, examID)
		if err != nil {
			return nil, err
		}
		fresh.SubmittedSessions = int(submitted)

		var autoCount int64
		if err := db.WithContext(ctx).
			Model(&models.ExamSession{}).
			Where("exam_id = ? AND auto_submitted = ?", examID, true).
			Count(&autoCount).Error; err != nil {
			return nil, err
		}
		fresh.AutoSubmitted = int(autoCount)

		var questionCount int64
		if err := db.WithContext(ctx).
			Model(&models.ExamQuestion{}).
			Where("exam_id = ?", examID).
			Count(&questionCount).Error; err != nil {
			return nil, err
		}
		fresh.QuestionCount = int(questionCount)

		var avg *float64
		if err := db.WithContext(ctx).
			Model(&models.Result{}).
			Select("AVG(results.percentage)").
			Joins("JOIN exam_sessions ON exam_sessions.id = results.session_id").
			Where("exam_sessions.exam_id = ?", examID).
			Scan(&avg).Error; err != nil {
			return nil, err
		}
		if avg != nil {
			fresh.AverageScore = *avg
		}

		return &fresh, nil
	})

	if err != nil {
		return nil, err
	}
	return &stats, nil
}
