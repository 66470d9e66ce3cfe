package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
	"gorm.io/gorm"
)

type examService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	randomizer *Randomizer
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, randomizer *Randomizer) ExamService {
	return &examService{
		repo:       repo,
		db:         db,
		logger:     logger,
		validator:  v,
		randomizer: randomizer,
	}
}

// ===== CORE CRUD =====

func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error) {
	s.logger.Info("Creating exam", "name", req.Name, "creator_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := s.validateWindow(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	accessCode, err := s.generateAccessCode(ctx)
	if err != nil {
		return nil, err
	}

	exam := &models.Exam{
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		TotalQuestions:  req.TotalQuestions,
		EasyCount:       req.EasyCount,
		MediumCount:     req.MediumCount,
		HardCount:       req.HardCount,
		AccessCode:      accessCode,
		IsActive:        req.IsActive,
		StartDate:       normalizeStartDate(req.StartDate),
		EndDate:         normalizeEndDate(req.EndDate),
		CreatedBy:       creatorID,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Exam().Create(ctx, nil, exam); err != nil {
			return fmt.Errorf("failed to create exam: %w", err)
		}

		// Fix the question set at authoring time, once
		if len(req.QuestionIDs) > 0 {
			if err := s.setExplicitQuestions(ctx, txRepo, exam, req.QuestionIDs); err != nil {
				return err
			}
		} else if exam.TotalQuestions > 0 {
			if err := s.selectQuestionsByQuota(ctx, txRepo, exam); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exam created",
		"exam_id", exam.ID,
		"access_code", exam.AccessCode)

	return s.GetByID(ctx, exam.ID, creatorID)
}

func (s *examService) GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	return s.buildExamResponse(ctx, exam, userID), nil
}

func (s *examService) GetByIDWithDetails(ctx context.Context, id uint, userID string) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByIDWithDetails(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam with details: %w", err)
	}

	return s.buildExamResponse(ctx, exam, userID), nil
}

func (s *examService) Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	exam, err := s.repo.Exam().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireEdit(ctx, exam, userID, "update"); err != nil {
		return nil, err
	}

	if req.Name != nil {
		exam.Name = *req.Name
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}
	if req.StartDate != nil || req.EndDate != nil {
		start := req.StartDate
		if start == nil {
			start = exam.StartDate
		}
		end := req.EndDate
		if end == nil {
			end = exam.EndDate
		}
		if err := s.validateWindow(start, end); err != nil {
			return nil, err
		}
		if req.StartDate != nil {
			exam.StartDate = normalizeStartDate(req.StartDate)
		}
		if req.EndDate != nil {
			exam.EndDate = normalizeEndDate(req.EndDate)
		}
	}

	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	s.logger.Info("Exam updated", "exam_id", id, "user_id", userID)

	return s.buildExamResponse(ctx, exam, userID), nil
}

func (s *examService) Delete(ctx context.Context, id uint, userID string) error {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireEdit(ctx, exam, userID, "delete"); err != nil {
		return err
	}

	if err := s.repo.Exam().Delete(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted", "exam_id", id, "user_id", userID)
	return nil
}

// ===== LIST =====

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error) {
	exams, total, err := s.repo.Exam().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	return s.buildListResponse(ctx, exams, total, filters, userID), nil
}

func (s *examService) GetByCreator(ctx context.Context, creatorID string, filters repositories.ExamFilters) (*ExamListResponse, error) {
	exams, total, err := s.repo.Exam().GetByCreator(ctx, s.db, creatorID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams by creator: %w", err)
	}

	return s.buildListResponse(ctx, exams, total, filters, creatorID), nil
}

// ===== ACTIVATION =====

func (s *examService) SetActive(ctx context.Context, id uint, active bool, userID string) error {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireEdit(ctx, exam, userID, "set_active"); err != nil {
		return err
	}

	if active {
		questionIDs, err := s.repo.Exam().GetQuestionIDs(ctx, s.db, id)
		if err != nil {
			return fmt.Errorf("failed to check exam questions: %w", err)
		}
		if len(questionIDs) == 0 {
			return NewBusinessRuleError(
				"EXAM-NO-QUESTIONS",
				"Exam must have at least one question before activation",
				map[string]interface{}{"exam_id": id})
		}
	}

	exam.IsActive = active
	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return fmt.Errorf("failed to update exam active flag: %w", err)
	}

	s.logger.Info("Exam active flag changed", "exam_id", id, "active", active)
	return nil
}

// ===== QUESTION SET =====

func (s *examService) SetQuestions(ctx context.Context, examID uint, questionIDs []uint, userID string) error {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireEdit(ctx, exam, userID, "set_questions"); err != nil {
		return err
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return s.setExplicitQuestions(ctx, txRepo, exam, questionIDs)
	})
}

func (s *examService) SelectByQuota(ctx context.Context, examID uint, userID string) error {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireEdit(ctx, exam, userID, "select_questions"); err != nil {
		return err
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return s.selectQuestionsByQuota(ctx, txRepo, exam)
	})
}

// ===== INVITATIONS =====

func (s *examService) InviteCandidate(ctx context.Context, examID uint, email, name string, userID string) error {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireEdit(ctx, exam, userID, "invite"); err != nil {
		return err
	}

	candidate, err := s.repo.Candidate().GetByEmail(ctx, s.db, email)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to look up candidate: %w", err)
		}
		candidate = &models.Candidate{Name: name, Email: email}
		if err := s.repo.Candidate().Create(ctx, s.db, candidate); err != nil {
			return fmt.Errorf("failed to create candidate: %w", err)
		}
	}

	if err := s.repo.Exam().AddCandidate(ctx, s.db, examID, candidate.ID); err != nil {
		return fmt.Errorf("failed to invite candidate: %w", err)
	}

	s.logger.Info("Candidate invited", "exam_id", examID, "candidate_id", candidate.ID)
	return nil
}

// ===== STATISTICS =====

func (s *examService) GetStats(ctx context.Context, id uint, userID string) (*repositories.ExamStats, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.requireEdit(ctx, exam, userID, "view_stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Exam().GetStats(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam stats: %w", err)
	}

	return stats, nil
}

// ===== PERMISSIONS =====

func (s *examService) CanEdit(ctx context.Context, examID uint, userID string) (bool, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrExamNotFound
		}
		return false, err
	}

	return s.canEditExam(ctx, exam, userID)
}

func (s *examService) canEditExam(ctx context.Context, exam *models.Exam, userID string) (bool, error) {
	if exam.CreatedBy == userID {
		return true, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return false, nil
	}
	return user.Role == models.RoleAdmin, nil
}

func (s *examService) requireEdit(ctx context.Context, exam *models.Exam, userID, action string) error {
	canEdit, err := s.canEditExam(ctx, exam, userID)
	if err != nil {
		return err
	}
	if !canEdit {
		return NewPermissionError(userID, exam.ID, "exam", action, "not owner or insufficient permissions")
	}
	return nil
}

// ===== WINDOW NORMALIZATION =====

// normalizeStartDate pins the opening bound to the very start of its day.
func normalizeStartDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	normalized := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return &normalized
}

// normalizeEndDate pins the closing bound to the last second of its day so
// the window stays inclusive.
func normalizeEndDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	normalized := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	return &normalized
}

func (s *examService) validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return NewValidationError("end_date", "end date must not precede start date", end)
	}
	return nil
}
