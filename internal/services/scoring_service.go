package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"gorm.io/gorm"
)

type scoringService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewScoringService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ScoringService {
	return &scoringService{
		repo:   repo,
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Evaluate scores a finalized session exactly once. If a Result row already
// exists it is returned unchanged; a lost race on the unique session_id
// index resolves the same way, by re-reading the winner's row.
func (s *scoringService) Evaluate(ctx context.Context, sessionID uint) (*models.Result, error) {
	if existing, err := s.repo.Result().GetBySession(ctx, s.db, sessionID); err == nil {
		return existing, nil
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check existing result: %w", err)
	}

	session, err := s.repo.Session().GetByIDWithDetails(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session for scoring: %w", err)
	}

	correct := 0
	for _, slot := range session.Slots {
		if setEqual(slot.SelectedIndices, slot.Question.CorrectIndices) {
			correct++
		}
	}
	total := len(session.Slots)
	wrong := total - correct

	result := &models.Result{
		SessionID:      sessionID,
		TotalQuestions: total,
		CorrectAnswers: correct,
		WrongAnswers:   wrong,
		Percentage:     percentage(correct, total),
		EvaluatedAt:    s.now(),
	}

	if err := s.repo.Result().Create(ctx, s.db, result); err != nil {
		// A concurrent evaluator won the insert; their result is the result.
		if existing, getErr := s.repo.Result().GetBySession(ctx, s.db, sessionID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to persist result: %w", err)
	}

	s.logger.Info("Session scored",
		"session_id", sessionID,
		"total", total,
		"correct", correct,
		"wrong", wrong,
		"percentage", result.Percentage)

	return result, nil
}

// setEqual compares two index collections as sets: order and duplicates are
// irrelevant. Empty equals empty, so an unanswered slot against a keyless
// question counts correct.
func setEqual(selected, correct []int) bool {
	sel := make(map[int]struct{}, len(selected))
	for _, idx := range selected {
		sel[idx] = struct{}{}
	}
	want := make(map[int]struct{}, len(correct))
	for _, idx := range correct {
		want[idx] = struct{}{}
	}

	if len(sel) != len(want) {
		return false
	}
	for idx := range want {
		if _, ok := sel[idx]; !ok {
			return false
		}
	}
	return true
}

// percentage is correct*100/total rounded to two decimals, 0 for an empty
// session.
func percentage(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)*100/float64(total)*100) / 100
}
