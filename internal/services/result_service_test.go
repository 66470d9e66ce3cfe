package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
)

func newResultTestEnv() (*resultService, *MockRepository) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := NewMockRepository()
	svc := &resultService{
		repo:   repo,
		logger: logger,
	}
	return svc, repo
}

// seedFinalizedSession stores a submitted session with a result attached and
// returns the session and result.
func seedFinalizedSession(t *testing.T, repo *MockRepository, examID uint, email string, auto bool, percentage float64) (*models.ExamSession, *models.Result) {
	t.Helper()
	ctx := context.Background()

	candidate := &models.Candidate{Name: "Candidate", Email: email}
	if err := repo.Candidate().Create(ctx, nil, candidate); err != nil {
		t.Fatalf("candidate seed failed: %v", err)
	}

	startedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	session := &models.ExamSession{
		ExamID:               examID,
		CandidateID:          candidate.ID,
		StartedAt:            startedAt,
		TotalDurationSeconds: 1800,
	}
	if err := repo.Session().Create(ctx, nil, session); err != nil {
		t.Fatalf("session seed failed: %v", err)
	}
	if won, err := repo.Session().MarkSubmitted(ctx, nil, session.ID, startedAt.Add(20*time.Minute), auto); err != nil || !won {
		t.Fatalf("session finalize failed (won=%v err=%v)", won, err)
	}

	result := &models.Result{
		SessionID:      session.ID,
		TotalQuestions: 2,
		CorrectAnswers: 1,
		WrongAnswers:   1,
		Percentage:     percentage,
		EvaluatedAt:    startedAt.Add(20 * time.Minute),
	}
	if err := repo.Result().Create(ctx, nil, result); err != nil {
		t.Fatalf("result seed failed: %v", err)
	}
	return session, result
}

func seedResultExam(repo *MockRepository) *models.Exam {
	return repo.AddExam(&models.Exam{
		Name:            "Finals",
		DurationMinutes: 30,
		AccessCode:      "EXAM0200",
		CreatedBy:       "examiner-1",
	}, nil)
}

func TestResultGetBySession(t *testing.T) {
	ctx := context.Background()

	t.Run("owner reads the result", func(t *testing.T) {
		svc, repo := newResultTestEnv()
		exam := seedResultExam(repo)
		session, _ := seedFinalizedSession(t, repo, exam.ID, "ada@example.com", true, 50)

		view, err := svc.GetBySession(ctx, session.ID, "examiner-1")
		if err != nil {
			t.Fatalf("GetBySession failed: %v", err)
		}
		if view.Percentage != 50 {
			t.Errorf("expected 50, got %v", view.Percentage)
		}
		if !view.AutoSubmitted {
			t.Error("auto-submitted flag lost in the view")
		}
	})

	t.Run("stranger is refused", func(t *testing.T) {
		svc, repo := newResultTestEnv()
		exam := seedResultExam(repo)
		session, _ := seedFinalizedSession(t, repo, exam.ID, "ada@example.com", false, 50)
		repo.AddUser(&models.User{ID: "examiner-2", Role: models.RoleExaminer})

		_, err := svc.GetBySession(ctx, session.ID, "examiner-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})

	t.Run("session without a result", func(t *testing.T) {
		svc, repo := newResultTestEnv()
		exam := seedResultExam(repo)

		candidate := &models.Candidate{Name: "Candidate", Email: "pending@example.com"}
		if err := repo.Candidate().Create(ctx, nil, candidate); err != nil {
			t.Fatalf("candidate seed failed: %v", err)
		}
		session := &models.ExamSession{
			ExamID:               exam.ID,
			CandidateID:          candidate.ID,
			StartedAt:            time.Now(),
			TotalDurationSeconds: 1800,
		}
		if err := repo.Session().Create(ctx, nil, session); err != nil {
			t.Fatalf("session seed failed: %v", err)
		}

		if _, err := svc.GetBySession(ctx, session.ID, "examiner-1"); !errors.Is(err, ErrResultNotFound) {
			t.Errorf("expected ErrResultNotFound, got %v", err)
		}
	})
}

func TestResultGetByExam(t *testing.T) {
	ctx := context.Background()
	svc, repo := newResultTestEnv()
	exam := seedResultExam(repo)
	seedFinalizedSession(t, repo, exam.ID, "ada@example.com", false, 100)
	seedFinalizedSession(t, repo, exam.ID, "grace@example.com", true, 0)

	views, err := svc.GetByExam(ctx, exam.ID, "examiner-1")
	if err != nil {
		t.Fatalf("GetByExam failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 results, got %d", len(views))
	}

	autoCount := 0
	for _, view := range views {
		if view.AutoSubmitted {
			autoCount++
		}
	}
	if autoCount != 1 {
		t.Errorf("expected exactly one auto-submitted result, got %d", autoCount)
	}
}

func TestResultExportExcel(t *testing.T) {
	ctx := context.Background()
	svc, repo := newResultTestEnv()
	exam := seedResultExam(repo)
	seedFinalizedSession(t, repo, exam.ID, "ada@example.com", false, 100)

	data, err := svc.ExportExcel(ctx, exam.ID, "examiner-1")
	if err != nil {
		t.Fatalf("ExportExcel failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty workbook")
	}
	// XLSX is a zip container; check the magic bytes.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Errorf("export does not look like an XLSX file: % x", data[:4])
	}
}

func TestResultMarkEmailed(t *testing.T) {
	ctx := context.Background()
	svc, repo := newResultTestEnv()
	exam := seedResultExam(repo)
	_, result := seedFinalizedSession(t, repo, exam.ID, "ada@example.com", false, 100)

	if err := svc.MarkEmailed(ctx, result.ID); err != nil {
		t.Fatalf("MarkEmailed failed: %v", err)
	}

	stored, err := repo.Result().GetBySession(ctx, nil, result.SessionID)
	if err != nil {
		t.Fatalf("result lookup failed: %v", err)
	}
	if !stored.ResultEmailed {
		t.Error("emailed flag not set")
	}

	if err := svc.MarkEmailed(ctx, 404); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound, got %v", err)
	}
}
