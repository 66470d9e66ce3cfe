package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type resultService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewResultService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ResultService {
	return &resultService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *resultService) GetBySession(ctx context.Context, sessionID uint, userID string) (*ResultView, error) {
	session, err := s.repo.Session().GetByID(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := s.requireExamAccess(ctx, session.ExamID, userID, "view_result"); err != nil {
		return nil, err
	}

	result, err := s.repo.Result().GetBySession(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	return resultToView(result, session.AutoSubmitted), nil
}

func (s *resultService) GetByExam(ctx context.Context, examID uint, userID string) ([]*ResultView, error) {
	if err := s.requireExamAccess(ctx, examID, userID, "view_results"); err != nil {
		return nil, err
	}

	results, err := s.repo.Result().GetByExam(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam results: %w", err)
	}

	views := make([]*ResultView, len(results))
	for i, result := range results {
		views[i] = resultToView(result, result.Session.AutoSubmitted)
	}
	return views, nil
}

// ExportExcel renders an exam's results as an XLSX workbook, ordered by
// percentage descending as GetByExam returns them.
func (s *resultService) ExportExcel(ctx context.Context, examID uint, userID string) ([]byte, error) {
	if err := s.requireExamAccess(ctx, examID, userID, "export_results"); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	results, err := s.repo.Result().GetByExam(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam results: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"Candidate", "Email", "Started At", "Submitted At", "Auto Submitted", "Correct", "Wrong", "Total", "Percentage"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, result := range results {
		session := result.Session
		values := []interface{}{
			session.Candidate.Name,
			session.Candidate.Email,
			session.StartedAt.Format("2006-01-02 15:04:05"),
			formatSubmittedAt(session.SubmittedAt),
			session.AutoSubmitted,
			result.CorrectAnswers,
			result.WrongAnswers,
			result.TotalQuestions,
			result.Percentage,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render results workbook: %w", err)
	}

	s.logger.Info("Results exported",
		"exam_id", examID,
		"exam_name", exam.Name,
		"row_count", len(results))

	return buf.Bytes(), nil
}

func (s *resultService) MarkEmailed(ctx context.Context, resultID uint) error {
	if err := s.repo.Result().MarkEmailed(ctx, s.db, resultID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrResultNotFound
		}
		return fmt.Errorf("failed to mark result emailed: %w", err)
	}
	return nil
}

// ===== HELPERS =====

func (s *resultService) requireExamAccess(ctx context.Context, examID uint, userID, action string) error {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	if exam.CreatedBy == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err == nil && user.Role == models.RoleAdmin {
		return nil
	}

	return NewPermissionError(userID, examID, "exam", action, "not owner or insufficient permissions")
}

func resultToView(result *models.Result, autoSubmitted bool) *ResultView {
	return &ResultView{
		SessionID:      result.SessionID,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		WrongAnswers:   result.WrongAnswers,
		Percentage:     result.Percentage,
		EvaluatedAt:    result.EvaluatedAt,
		AutoSubmitted:  autoSubmitted,
	}
}

func formatSubmittedAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
