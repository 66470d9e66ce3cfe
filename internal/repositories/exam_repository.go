package repositories

import (
	"context"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"gorm.io/gorm"
)

// ExamRepository covers the assessment catalog: read-mostly for the session
// core, mutated only by examiner authoring and candidate invitation.
type ExamRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) // Include questions, candidates
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Access-code lookups (the session start path)
	GetByAccessCode(ctx context.Context, tx *gorm.DB, accessCode string) (*models.Exam, error)
	ExistsByAccessCode(ctx context.Context, tx *gorm.DB, accessCode string) (bool, error)

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters ExamFilters) ([]*models.Exam, int64, error)

	// Question set management (authoring time only)
	SetQuestions(ctx context.Context, tx *gorm.DB, examID uint, questionIDs []uint) error
	GetQuestionIDs(ctx context.Context, tx *gorm.DB, examID uint) ([]uint, error)

	// Invitation management
	AddCandidate(ctx context.Context, tx *gorm.DB, examID, candidateID uint) error
	HasCandidate(ctx context.Context, tx *gorm.DB, examID, candidateID uint) (bool, error)

	// Statistics
	GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*ExamStats, error)
}

// QuestionRepository is read-only to the session core; authoring goes through
// the question service.
type QuestionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Bulk lookups used by randomization and scoring
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	GetByDifficulty(ctx context.Context, tx *gorm.DB, difficulty models.DifficultyLevel) ([]*models.Question, error)

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters QuestionFilters) ([]*models.Question, int64, error)
	CountByDifficulty(ctx context.Context, tx *gorm.DB) (*QuestionPoolCounts, error)

	// Validation
	IsUsedInExams(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

