package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionPostgreSQL is deliberately uncached: remaining time is projected
// from started_at on every read, so a stale row would break the timer.
type SessionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (s *SessionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Create persists the session row and its answer slots in one insert.
// The slots ride along through the Slots association.
func (s *SessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSession, error) {
	db := s.getDB(tx)
	var session models.ExamSession
	if err := db.WithContext(ctx).First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSession, error) {
	db := s.getDB(tx)
	var session models.ExamSession
	if err := db.WithContext(ctx).
		Preload("Slots", func(db *gorm.DB) *gorm.DB {
			return db.Order("answer_slots.\"order\" ASC")
		}).
		Preload("Slots.Question").
		Preload("Exam").
		Preload("Candidate").
		Preload("Result").
		First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByExamAndCandidate(ctx context.Context, tx *gorm.DB, examID, candidateID uint) (*models.ExamSession, error) {
	db := s.getDB(tx)
	var session models.ExamSession
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND candidate_id = ?", examID, candidateID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session by exam and candidate: %w", err)
	}
	return &session, nil
}

func (s *SessionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	db := s.getDB(tx)
	// Omit the association so a stale in-memory slot list can never
	// clobber answers saved by a concurrent request.
	return db.WithContext(ctx).Omit(clause.Associations).Save(session).Error
}

func (s *SessionPostgreSQL) UpdateRemaining(ctx context.Context, tx *gorm.DB, id uint, remainingSeconds int) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.ExamSession{}).
		Where("id = ?", id).
		Update("remaining_seconds", remainingSeconds).Error
}

func (s *SessionPostgreSQL) UpdateSlotSelections(ctx context.Context, tx *gorm.DB, slotID uint, selected []int) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.AnswerSlot{}).
		Where("id = ?", slotID).
		Update("selected_indices", datatypes.JSONSlice[int](selected)).Error
}

// MarkSubmitted is the single-winner submit primitive. The WHERE clause on
// submitted = false makes the flip a compare-and-set: exactly one of any
// number of racing callers sees RowsAffected == 1.
func (s *SessionPostgreSQL) MarkSubmitted(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time, auto bool) (bool, error) {
	db := s.getDB(tx)
	res := db.WithContext(ctx).
		Model(&models.ExamSession{}).
		Where("id = ? AND submitted = ?", id, false).
		Updates(map[string]interface{}{
			"submitted":         true,
			"auto_submitted":    auto,
			"submitted_at":      submittedAt,
			"remaining_seconds": 0,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark session submitted: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *SessionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.SessionFilters) ([]*models.ExamSession, int64, error) {
	filters.ExamID = &examID
	return s.List(ctx, tx, filters)
}

func (s *SessionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SessionFilters) ([]*models.ExamSession, int64, error) {
	db := s.getDB(tx)
	var sessions []*models.ExamSession
	var total int64

	// apply filter first
	query := db.WithContext(ctx).Model(&models.ExamSession{})
	query = s.helpers.ApplySessionFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "started_at"
	}
	query = s.helpers.ApplyPaginationAndSort(query, sortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Candidate").Preload("Result").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}
