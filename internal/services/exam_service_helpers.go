package services

import (
	"context"
	"fmt"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
)

const (
	accessCodePrefix   = "EXAM"
	accessCodeMaxTries = 10
)

// generateAccessCode produces a fresh EXAM-prefixed four digit code, retrying
// on collision against the unique index.
func (s *examService) generateAccessCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < accessCodeMaxTries; attempt++ {
		code := fmt.Sprintf("%s%04d", accessCodePrefix, s.randomizer.Intn(10000))

		exists, err := s.repo.Exam().ExistsByAccessCode(ctx, s.db, code)
		if err != nil {
			return "", fmt.Errorf("failed to check access code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrDuplicateAccessCode
}

// setExplicitQuestions validates the given ids and fixes them as the exam's
// question set, replacing any previous set. repo is the transaction-scoped
// repository of the enclosing WithTransaction.
func (s *examService) setExplicitQuestions(ctx context.Context, repo repositories.Repository, exam *models.Exam, questionIDs []uint) error {
	if len(questionIDs) == 0 {
		return NewValidationError("question_ids", "at least one question is required", questionIDs)
	}

	questions, err := repo.Question().GetByIDs(ctx, nil, questionIDs)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}
	if len(questions) != len(questionIDs) {
		return ErrQuestionNotFound
	}

	if err := repo.Exam().SetQuestions(ctx, nil, exam.ID, questionIDs); err != nil {
		return fmt.Errorf("failed to set exam questions: %w", err)
	}

	exam.TotalQuestions = len(questionIDs)
	if err := repo.Exam().Update(ctx, nil, exam); err != nil {
		return fmt.Errorf("failed to update exam question count: %w", err)
	}

	s.logger.Info("Exam question set fixed",
		"exam_id", exam.ID,
		"question_count", len(questionIDs))
	return nil
}

// selectQuestionsByQuota draws the exam's question set from the bank, one
// shuffle-and-take pass per difficulty bucket. The draw happens once at
// authoring time; sessions only permute the fixed set afterwards.
func (s *examService) selectQuestionsByQuota(ctx context.Context, repo repositories.Repository, exam *models.Exam) error {
	quotas := []struct {
		difficulty models.DifficultyLevel
		count      int
	}{
		{models.DifficultyEasy, exam.EasyCount},
		{models.DifficultyMedium, exam.MediumCount},
		{models.DifficultyHard, exam.HardCount},
	}

	var selected []uint
	for _, quota := range quotas {
		if quota.count == 0 {
			continue
		}

		pool, err := repo.Question().GetByDifficulty(ctx, nil, quota.difficulty)
		if err != nil {
			return fmt.Errorf("failed to load %s question pool: %w", quota.difficulty, err)
		}
		if len(pool) < quota.count {
			s.logger.Warn("Question pool too small for quota",
				"difficulty", quota.difficulty,
				"available", len(pool),
				"needed", quota.count)
			return ErrInsufficientQuestions
		}

		ids := make([]uint, len(pool))
		for i, q := range pool {
			ids[i] = q.ID
		}
		s.randomizer.ShuffleIDs(ids)
		selected = append(selected, ids[:quota.count]...)
	}

	if len(selected) == 0 {
		return NewValidationError("total_questions", "difficulty quotas select no questions", exam.TotalQuestions)
	}

	if err := repo.Exam().SetQuestions(ctx, nil, exam.ID, selected); err != nil {
		return fmt.Errorf("failed to set exam questions: %w", err)
	}

	exam.TotalQuestions = len(selected)
	if err := repo.Exam().Update(ctx, nil, exam); err != nil {
		return fmt.Errorf("failed to update exam question count: %w", err)
	}

	s.logger.Info("Exam questions selected by quota",
		"exam_id", exam.ID,
		"easy", exam.EasyCount,
		"medium", exam.MediumCount,
		"hard", exam.HardCount,
		"total", len(selected))
	return nil
}

// ===== RESPONSE BUILDERS =====

func (s *examService) buildExamResponse(ctx context.Context, exam *models.Exam, userID string) *ExamResponse {
	canEdit, _ := s.canEditExam(ctx, exam, userID)
	return &ExamResponse{
		Exam:      exam,
		CanEdit:   canEdit,
		CanDelete: canEdit,
	}
}

func (s *examService) buildListResponse(ctx context.Context, exams []*models.Exam, total int64, filters repositories.ExamFilters, userID string) *ExamListResponse {
	responses := make([]*ExamResponse, len(exams))
	for i, exam := range exams {
		responses[i] = s.buildExamResponse(ctx, exam, userID)
	}

	page := 1
	size := len(exams)
	if filters.Limit > 0 {
		size = filters.Limit
		page = filters.Offset/filters.Limit + 1
	}

	return &ExamListResponse{
		Exams: responses,
		Total: total,
		Page:  page,
		Size:  size,
	}
}
