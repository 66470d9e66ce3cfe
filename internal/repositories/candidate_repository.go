package repositories

import (
	"context"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"gorm.io/gorm"
)

// CandidateRepository is the participant directory; find-or-create is keyed
// by email.
type CandidateRepository interface {
	Create(ctx context.Context, tx *gorm.DB, candidate *models.Candidate) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Candidate, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Candidate, error)
	Update(ctx context.Context, tx *gorm.DB, candidate *models.Candidate) error
	List(ctx context.Context, tx *gorm.DB, filters CandidateFilters) ([]*models.Candidate, int64, error)
}

// ResultRepository stores the 1:1 score rows.
type ResultRepository interface {
	// Create inserts the result; the unique session_id index makes a racing
	// duplicate insert fail, after which callers re-read the winner's row.
	Create(ctx context.Context, tx *gorm.DB, result *models.Result) error
	GetBySession(ctx context.Context, tx *gorm.DB, sessionID uint) (*models.Result, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Result, error)
	MarkEmailed(ctx context.Context, tx *gorm.DB, id uint) error
}

// UserRepository resolves examiner identities (backed by Casdoor).
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
