package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

type candidateService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewCandidateService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) CandidateService {
	return &candidateService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// FindOrCreate resolves a candidate by email, creating the row when missing.
// A concurrent creator losing the unique-index race falls back to re-reading
// the winner's row, so the call is idempotent under contention.
func (s *candidateService) FindOrCreate(ctx context.Context, name, email string, externalID *string) (*models.Candidate, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	candidate, err := s.repo.Candidate().GetByEmail(ctx, s.db, email)
	if err == nil {
		s.refreshProfile(ctx, candidate, name, externalID)
		return candidate, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up candidate: %w", err)
	}

	candidate = &models.Candidate{
		Name:       name,
		Email:      email,
		ExternalID: externalID,
	}
	if err := s.repo.Candidate().Create(ctx, s.db, candidate); err != nil {
		// Lost the insert race; the winner's row is authoritative
		existing, readErr := s.repo.Candidate().GetByEmail(ctx, s.db, email)
		if readErr != nil {
			return nil, fmt.Errorf("failed to create candidate: %w", err)
		}
		return existing, nil
	}

	s.logger.Info("Candidate created", "candidate_id", candidate.ID)
	return candidate, nil
}

func (s *candidateService) GetByID(ctx context.Context, id uint) (*models.Candidate, error) {
	candidate, err := s.repo.Candidate().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCandidateNotFound
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return candidate, nil
}

func (s *candidateService) List(ctx context.Context, filters repositories.CandidateFilters) ([]*models.Candidate, int64, error) {
	candidates, total, err := s.repo.Candidate().List(ctx, s.db, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list candidates: %w", err)
	}
	return candidates, total, nil
}

// refreshProfile keeps the directory row current when a returning candidate
// starts with a newer display name or external id. Failures are logged only;
// the stale profile never blocks a session start.
func (s *candidateService) refreshProfile(ctx context.Context, candidate *models.Candidate, name string, externalID *string) {
	changed := false
	if name != "" && name != candidate.Name {
		candidate.Name = name
		changed = true
	}
	if externalID != nil && (candidate.ExternalID == nil || *candidate.ExternalID != *externalID) {
		candidate.ExternalID = externalID
		changed = true
	}
	if !changed {
		return
	}

	if err := s.repo.Candidate().Update(ctx, s.db, candidate); err != nil {
		s.logger.Error("Failed to refresh candidate profile",
			"candidate_id", candidate.ID,
			"error", err)
	}
}
