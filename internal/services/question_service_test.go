package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
	"gorm.io/datatypes"
)

func newQuestionTestEnv() (*questionService, *MockRepository) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := NewMockRepository()
	svc := &questionService{
		repo:      repo,
		logger:    logger,
		validator: validator.New(),
	}
	return svc, repo
}

func validQuestionRequest() *CreateQuestionRequest {
	return &CreateQuestionRequest{
		Text: "Which port does HTTPS use by default?",
		Options: []validator.QuestionOptionRequest{
			{Text: "80"},
			{Text: "443"},
			{Text: "8080"},
		},
		CorrectIndices: []int{1},
		Difficulty:     models.DifficultyEasy,
		Tags:           []string{"networking"},
	}
}

func TestQuestionCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns option indices in request order", func(t *testing.T) {
		svc, _ := newQuestionTestEnv()

		resp, err := svc.Create(ctx, validQuestionRequest(), "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if len(resp.Options) != 3 {
			t.Fatalf("expected 3 options, got %d", len(resp.Options))
		}
		for i, opt := range resp.Options {
			if opt.Index != i {
				t.Errorf("option %d has index %d", i, opt.Index)
			}
		}
		if !resp.CanEdit {
			t.Error("creator must be able to edit")
		}
	})

	t.Run("correct index outside the option range", func(t *testing.T) {
		svc, _ := newQuestionTestEnv()

		req := validQuestionRequest()
		req.CorrectIndices = []int{3}

		if _, err := svc.Create(ctx, req, "examiner-1"); err == nil {
			t.Error("out-of-range correct index should fail")
		}
	})

	t.Run("blank tag", func(t *testing.T) {
		svc, _ := newQuestionTestEnv()

		req := validQuestionRequest()
		req.Tags = []string{" "}

		if _, err := svc.Create(ctx, req, "examiner-1"); err == nil {
			t.Error("blank tag should fail")
		}
	})
}

func TestQuestionUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update keeps untouched fields", func(t *testing.T) {
		svc, _ := newQuestionTestEnv()
		created, err := svc.Create(ctx, validQuestionRequest(), "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		hard := models.DifficultyHard
		resp, err := svc.Update(ctx, created.ID, &UpdateQuestionRequest{Difficulty: &hard}, "examiner-1")
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if resp.Difficulty != models.DifficultyHard {
			t.Errorf("difficulty not updated: %s", resp.Difficulty)
		}
		if resp.Text != created.Text {
			t.Errorf("text changed unexpectedly: %q", resp.Text)
		}
	})

	t.Run("shrinking options below the key is rejected", func(t *testing.T) {
		svc, _ := newQuestionTestEnv()
		req := validQuestionRequest()
		req.CorrectIndices = []int{2}
		created, err := svc.Create(ctx, req, "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		// Two options left but the key still points at index 2.
		_, err = svc.Update(ctx, created.ID, &UpdateQuestionRequest{
			Options: []validator.QuestionOptionRequest{
				{Text: "yes"},
				{Text: "no"},
			},
		}, "examiner-1")
		if err == nil {
			t.Error("key outside the new option range should fail")
		}
	})

	t.Run("non-owner cannot update", func(t *testing.T) {
		svc, repo := newQuestionTestEnv()
		created, err := svc.Create(ctx, validQuestionRequest(), "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		repo.AddUser(&models.User{ID: "examiner-2", Role: models.RoleExaminer})

		text := "rewritten"
		_, err = svc.Update(ctx, created.ID, &UpdateQuestionRequest{Text: &text}, "examiner-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})
}

func TestQuestionDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("question used by an exam cannot be deleted", func(t *testing.T) {
		svc, repo := newQuestionTestEnv()
		created, err := svc.Create(ctx, validQuestionRequest(), "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		repo.AddExam(&models.Exam{
			Name:            "Uses the question",
			DurationMinutes: 30,
			AccessCode:      "EXAM0100",
			CreatedBy:       "examiner-1",
		}, []uint{created.ID})

		if err := svc.Delete(ctx, created.ID, "examiner-1"); !errors.Is(err, ErrQuestionInUse) {
			t.Errorf("expected ErrQuestionInUse, got %v", err)
		}
	})

	t.Run("unused question deletes", func(t *testing.T) {
		svc, _ := newQuestionTestEnv()
		created, err := svc.Create(ctx, validQuestionRequest(), "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if err := svc.Delete(ctx, created.ID, "examiner-1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := svc.GetByID(ctx, created.ID, "examiner-1"); !errors.Is(err, ErrQuestionNotFound) {
			t.Errorf("expected ErrQuestionNotFound after delete, got %v", err)
		}
	})
}

func TestQuestionCountByDifficulty(t *testing.T) {
	ctx := context.Background()
	svc, repo := newQuestionTestEnv()

	for _, difficulty := range []models.DifficultyLevel{
		models.DifficultyEasy, models.DifficultyEasy,
		models.DifficultyMedium,
		models.DifficultyHard, models.DifficultyHard, models.DifficultyHard,
	} {
		repo.AddQuestion(&models.Question{
			Text:           "bank entry",
			Options:        threeOptions(),
			CorrectIndices: datatypes.JSONSlice[int]{0},
			Difficulty:     difficulty,
			CreatedBy:      "examiner-1",
		})
	}

	counts, err := svc.CountByDifficulty(ctx)
	if err != nil {
		t.Fatalf("CountByDifficulty failed: %v", err)
	}
	if counts.Easy != 2 || counts.Medium != 1 || counts.Hard != 3 {
		t.Errorf("unexpected pool counts: %+v", counts)
	}
}
