package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type questionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

func (s *questionService) Create(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*QuestionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if errs := validator.CheckCorrectIndices(req.CorrectIndices, len(req.Options)); len(errs) > 0 {
		return nil, errs
	}
	if errs := validator.CheckTags(req.Tags); len(errs) > 0 {
		return nil, errs
	}

	question := &models.Question{
		Text:           req.Text,
		Paragraph:      req.Paragraph,
		ImageURL:       req.ImageURL,
		Options:        buildOptions(req.Options),
		CorrectIndices: datatypes.JSONSlice[int](req.CorrectIndices),
		Difficulty:     req.Difficulty,
		Tags:           datatypes.JSONSlice[string](req.Tags),
		CreatedBy:      creatorID,
	}

	if err := s.repo.Question().Create(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question created",
		"question_id", question.ID,
		"difficulty", question.Difficulty,
		"creator_id", creatorID)

	return s.buildQuestionResponse(ctx, question, creatorID), nil
}

func (s *questionService) GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error) {
	question, err := s.repo.Question().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return s.buildQuestionResponse(ctx, question, userID), nil
}

func (s *questionService) Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	question, err := s.repo.Question().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	if err := s.requireEdit(ctx, question, userID, "update"); err != nil {
		return nil, err
	}

	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Paragraph != nil {
		question.Paragraph = req.Paragraph
	}
	if req.ImageURL != nil {
		question.ImageURL = req.ImageURL
	}
	if req.Options != nil {
		question.Options = buildOptions(req.Options)
	}
	if req.CorrectIndices != nil {
		question.CorrectIndices = datatypes.JSONSlice[int](req.CorrectIndices)
	}
	if req.Difficulty != nil {
		question.Difficulty = *req.Difficulty
	}
	if req.Tags != nil {
		if errs := validator.CheckTags(req.Tags); len(errs) > 0 {
			return nil, errs
		}
		question.Tags = datatypes.JSONSlice[string](req.Tags)
	}

	// Key and options must stay consistent whichever side the update touched
	if errs := validator.CheckCorrectIndices(question.CorrectIndices, len(question.Options)); len(errs) > 0 {
		return nil, errs
	}

	if err := s.repo.Question().Update(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	s.logger.Info("Question updated", "question_id", id, "user_id", userID)

	return s.buildQuestionResponse(ctx, question, userID), nil
}

func (s *questionService) Delete(ctx context.Context, id uint, userID string) error {
	question, err := s.repo.Question().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}

	if err := s.requireEdit(ctx, question, userID, "delete"); err != nil {
		return err
	}

	inUse, err := s.repo.Question().IsUsedInExams(ctx, s.db, id)
	if err != nil {
		return fmt.Errorf("failed to check question usage: %w", err)
	}
	if inUse {
		return ErrQuestionInUse
	}

	if err := s.repo.Question().Delete(ctx, s.db, id); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.Info("Question deleted", "question_id", id, "user_id", userID)
	return nil
}

func (s *questionService) List(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error) {
	questions, total, err := s.repo.Question().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	responses := make([]*QuestionResponse, len(questions))
	for i, q := range questions {
		responses[i] = s.buildQuestionResponse(ctx, q, userID)
	}

	page := 1
	size := len(questions)
	if filters.Limit > 0 {
		size = filters.Limit
		page = filters.Offset/filters.Limit + 1
	}

	return &QuestionListResponse{
		Questions: responses,
		Total:     total,
		Page:      page,
		Size:      size,
	}, nil
}

func (s *questionService) CountByDifficulty(ctx context.Context) (*repositories.QuestionPoolCounts, error) {
	counts, err := s.repo.Question().CountByDifficulty(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to count question pool: %w", err)
	}
	return counts, nil
}

// ===== HELPERS =====

func (s *questionService) canEditQuestion(ctx context.Context, question *models.Question, userID string) (bool, error) {
	if question.CreatedBy == userID {
		return true, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return false, nil
	}
	return user.Role == models.RoleAdmin, nil
}

func (s *questionService) requireEdit(ctx context.Context, question *models.Question, userID, action string) error {
	canEdit, err := s.canEditQuestion(ctx, question, userID)
	if err != nil {
		return err
	}
	if !canEdit {
		return NewPermissionError(userID, question.ID, "question", action, "not owner or insufficient permissions")
	}
	return nil
}

func (s *questionService) buildQuestionResponse(ctx context.Context, question *models.Question, userID string) *QuestionResponse {
	canEdit, _ := s.canEditQuestion(ctx, question, userID)
	return &QuestionResponse{
		Question:  question,
		CanEdit:   canEdit,
		CanDelete: canEdit,
	}
}

// buildOptions assigns stable indices in request order.
func buildOptions(reqs []validator.QuestionOptionRequest) datatypes.JSONSlice[models.QuestionOption] {
	options := make([]models.QuestionOption, len(reqs))
	for i, opt := range reqs {
		options[i] = models.QuestionOption{
			Index:    i,
			Text:     opt.Text,
			ImageURL: opt.ImageURL,
		}
	}
	return datatypes.JSONSlice[models.QuestionOption](options)
}
