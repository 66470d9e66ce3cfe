package repositories

import (
	"context"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"gorm.io/gorm"
)

// SessionRepository persists sessions and their ordered answer slots.
type SessionRepository interface {
	// Create persists the session together with its answer slots in one shot.
	Create(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSession, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamSession, error) // Slots (ordered) + questions, exam, candidate, result
	GetByExamAndCandidate(ctx context.Context, tx *gorm.DB, examID, candidateID uint) (*models.ExamSession, error)
	Update(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error

	// UpdateRemaining persists a freshly projected remaining-seconds value
	// without touching any other column.
	UpdateRemaining(ctx context.Context, tx *gorm.DB, id uint, remainingSeconds int) error

	// UpdateSlotSelections replaces the selected index set of one slot.
	UpdateSlotSelections(ctx context.Context, tx *gorm.DB, slotID uint, selected []int) error

	// MarkSubmitted flips submitted false→true guarded by submitted = false.
	// It returns true only for the single caller that won the flip; every
	// loser must treat the session as already submitted.
	MarkSubmitted(ctx context.Context, tx *gorm.DB, id uint, submittedAt time.Time, auto bool) (bool, error)

	// Query operations
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint, filters SessionFilters) ([]*models.ExamSession, int64, error)
	List(ctx context.Context, tx *gorm.DB, filters SessionFilters) ([]*models.ExamSession, int64, error)
}
