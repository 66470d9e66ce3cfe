package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
	"gorm.io/datatypes"
)

var accessCodePattern = regexp.MustCompile(`^EXAM[0-9]{4}$`)

func newExamTestEnv() (*examService, *MockRepository) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := NewMockRepository()
	svc := &examService{
		repo:       repo,
		logger:     logger,
		validator:  validator.New(),
		randomizer: NewSeededRandomizer(11),
	}
	return svc, repo
}

// seedBank fills the question bank with the given number of questions per
// difficulty and returns all ids.
func seedBank(repo *MockRepository, easy, medium, hard int) []uint {
	var ids []uint
	add := func(n int, difficulty models.DifficultyLevel) {
		for i := 0; i < n; i++ {
			q := repo.AddQuestion(&models.Question{
				Text:           fmt.Sprintf("%s question %d", difficulty, i),
				Options:        threeOptions(),
				CorrectIndices: datatypes.JSONSlice[int]{0},
				Difficulty:     difficulty,
				CreatedBy:      "examiner-1",
			})
			ids = append(ids, q.ID)
		}
	}
	add(easy, models.DifficultyEasy)
	add(medium, models.DifficultyMedium)
	add(hard, models.DifficultyHard)
	return ids
}

func validExamRequest() *CreateExamRequest {
	return &CreateExamRequest{
		Name:            "Midterm",
		DurationMinutes: 45,
	}
}

func TestExamCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit question set", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		ids := seedBank(repo, 2, 1, 0)

		req := validExamRequest()
		req.QuestionIDs = ids

		resp, err := svc.Create(ctx, req, "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if !accessCodePattern.MatchString(resp.AccessCode) {
			t.Errorf("access code %q does not match the EXAM#### shape", resp.AccessCode)
		}
		if resp.TotalQuestions != len(ids) {
			t.Errorf("expected %d questions, got %d", len(ids), resp.TotalQuestions)
		}

		assigned, err := repo.Exam().GetQuestionIDs(ctx, nil, resp.ID)
		if err != nil {
			t.Fatalf("GetQuestionIDs failed: %v", err)
		}
		if len(assigned) != len(ids) {
			t.Errorf("expected %d assigned questions, got %d", len(ids), len(assigned))
		}
	})

	t.Run("quota selection draws per difficulty", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		seedBank(repo, 4, 3, 2)

		req := validExamRequest()
		req.TotalQuestions = 4
		req.EasyCount = 2
		req.MediumCount = 1
		req.HardCount = 1

		resp, err := svc.Create(ctx, req, "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if resp.TotalQuestions != 4 {
			t.Errorf("expected 4 selected questions, got %d", resp.TotalQuestions)
		}

		assigned, err := repo.Exam().GetQuestionIDs(ctx, nil, resp.ID)
		if err != nil {
			t.Fatalf("GetQuestionIDs failed: %v", err)
		}

		byDifficulty := make(map[models.DifficultyLevel]int)
		for _, id := range assigned {
			question, err := repo.Question().GetByID(ctx, nil, id)
			if err != nil {
				t.Fatalf("selected question %d not in bank: %v", id, err)
			}
			byDifficulty[question.Difficulty]++
		}
		if byDifficulty[models.DifficultyEasy] != 2 || byDifficulty[models.DifficultyMedium] != 1 || byDifficulty[models.DifficultyHard] != 1 {
			t.Errorf("quota not honored: %v", byDifficulty)
		}
	})

	t.Run("quota shortfall", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		seedBank(repo, 1, 0, 0)

		req := validExamRequest()
		req.TotalQuestions = 3
		req.EasyCount = 3

		if _, err := svc.Create(ctx, req, "examiner-1"); !errors.Is(err, ErrInsufficientQuestions) {
			t.Errorf("expected ErrInsufficientQuestions, got %v", err)
		}
	})

	t.Run("unknown explicit question id", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		ids := seedBank(repo, 1, 0, 0)

		req := validExamRequest()
		req.QuestionIDs = append(ids, 999)

		if _, err := svc.Create(ctx, req, "examiner-1"); !errors.Is(err, ErrQuestionNotFound) {
			t.Errorf("expected ErrQuestionNotFound, got %v", err)
		}
	})

	t.Run("window bounds normalize to day edges", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		seedBank(repo, 1, 0, 0)

		start := time.Date(2025, 4, 1, 14, 30, 0, 0, time.UTC)
		end := time.Date(2025, 4, 3, 8, 15, 0, 0, time.UTC)
		req := validExamRequest()
		req.StartDate = &start
		req.EndDate = &end

		resp, err := svc.Create(ctx, req, "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		exam, err := repo.Exam().GetByID(ctx, nil, resp.ID)
		if err != nil {
			t.Fatalf("exam lookup failed: %v", err)
		}
		if h, m, s := exam.StartDate.Clock(); h != 0 || m != 0 || s != 0 {
			t.Errorf("start date not pinned to start of day: %v", exam.StartDate)
		}
		if h, m, s := exam.EndDate.Clock(); h != 23 || m != 59 || s != 59 {
			t.Errorf("end date not pinned to end of day: %v", exam.EndDate)
		}
	})

	t.Run("end before start is rejected", func(t *testing.T) {
		svc, _ := newExamTestEnv()

		start := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
		req := validExamRequest()
		req.StartDate = &start
		req.EndDate = &end

		if _, err := svc.Create(ctx, req, "examiner-1"); !IsValidationError(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("duration outside bounds fails validation", func(t *testing.T) {
		svc, _ := newExamTestEnv()

		req := validExamRequest()
		req.DurationMinutes = 2

		_, err := svc.Create(ctx, req, "examiner-1")
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			t.Errorf("expected validation errors, got %v", err)
		}
	})

	t.Run("access code collision retries", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		seedBank(repo, 1, 0, 0)

		// Occupy the code the service's seeded source would draw first.
		taken := fmt.Sprintf("EXAM%04d", NewSeededRandomizer(11).Intn(10000))
		repo.AddExam(&models.Exam{
			Name:            "Occupier",
			DurationMinutes: 30,
			AccessCode:      taken,
			CreatedBy:       "examiner-1",
		}, nil)

		resp, err := svc.Create(ctx, validExamRequest(), "examiner-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if resp.AccessCode == taken {
			t.Errorf("service reused the occupied access code %s", taken)
		}
		if !accessCodePattern.MatchString(resp.AccessCode) {
			t.Errorf("retried code %q does not match the EXAM#### shape", resp.AccessCode)
		}
	})
}

func TestExamSetActive(t *testing.T) {
	ctx := context.Background()

	t.Run("activation requires at least one question", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		exam := repo.AddExam(&models.Exam{
			Name:            "Empty",
			DurationMinutes: 30,
			AccessCode:      "EXAM0001",
			CreatedBy:       "examiner-1",
		}, nil)

		err := svc.SetActive(ctx, exam.ID, true, "examiner-1")
		var ruleErr *BusinessRuleError
		if !errors.As(err, &ruleErr) {
			t.Fatalf("expected BusinessRuleError, got %v", err)
		}
		if ruleErr.Code != "EXAM-NO-QUESTIONS" {
			t.Errorf("unexpected rule code %s", ruleErr.Code)
		}
	})

	t.Run("activation with questions succeeds", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		ids := seedBank(repo, 1, 0, 0)
		exam := repo.AddExam(&models.Exam{
			Name:            "Ready",
			DurationMinutes: 30,
			AccessCode:      "EXAM0002",
			CreatedBy:       "examiner-1",
		}, ids)

		if err := svc.SetActive(ctx, exam.ID, true, "examiner-1"); err != nil {
			t.Fatalf("SetActive failed: %v", err)
		}
		if !exam.IsActive {
			t.Error("exam was not activated")
		}
	})

	t.Run("deactivation never needs questions", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		exam := repo.AddExam(&models.Exam{
			Name:            "Winding down",
			DurationMinutes: 30,
			AccessCode:      "EXAM0003",
			IsActive:        true,
			CreatedBy:       "examiner-1",
		}, nil)

		if err := svc.SetActive(ctx, exam.ID, false, "examiner-1"); err != nil {
			t.Fatalf("SetActive failed: %v", err)
		}
		if exam.IsActive {
			t.Error("exam was not deactivated")
		}
	})
}

func TestExamPermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("non-owner cannot update", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		exam := repo.AddExam(&models.Exam{
			Name:            "Guarded",
			DurationMinutes: 30,
			AccessCode:      "EXAM0004",
			CreatedBy:       "examiner-1",
		}, nil)
		repo.AddUser(&models.User{ID: "examiner-2", Role: models.RoleExaminer})

		name := "Hijacked"
		_, err := svc.Update(ctx, exam.ID, &UpdateExamRequest{Name: &name}, "examiner-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})

	t.Run("admin can update any exam", func(t *testing.T) {
		svc, repo := newExamTestEnv()
		exam := repo.AddExam(&models.Exam{
			Name:            "Guarded",
			DurationMinutes: 30,
			AccessCode:      "EXAM0005",
			CreatedBy:       "examiner-1",
		}, nil)
		repo.AddUser(&models.User{ID: "admin-1", Role: models.RoleAdmin})

		name := "Renamed by admin"
		resp, err := svc.Update(ctx, exam.ID, &UpdateExamRequest{Name: &name}, "admin-1")
		if err != nil {
			t.Fatalf("admin update failed: %v", err)
		}
		if resp.Name != name {
			t.Errorf("expected renamed exam, got %q", resp.Name)
		}
	})
}

func TestExamInviteCandidate(t *testing.T) {
	ctx := context.Background()
	svc, repo := newExamTestEnv()
	exam := repo.AddExam(&models.Exam{
		Name:            "Invitational",
		DurationMinutes: 30,
		AccessCode:      "EXAM0006",
		CreatedBy:       "examiner-1",
	}, nil)

	if err := svc.InviteCandidate(ctx, exam.ID, "ada@example.com", "Ada Lovelace", "examiner-1"); err != nil {
		t.Fatalf("InviteCandidate failed: %v", err)
	}

	candidate, err := repo.Candidate().GetByEmail(ctx, nil, "ada@example.com")
	if err != nil {
		t.Fatalf("candidate was not created: %v", err)
	}
	invited, err := repo.Exam().HasCandidate(ctx, nil, exam.ID, candidate.ID)
	if err != nil || !invited {
		t.Errorf("candidate not attached to the exam (invited=%v err=%v)", invited, err)
	}

	// Inviting the same email again reuses the existing directory row.
	if err := svc.InviteCandidate(ctx, exam.ID, "ada@example.com", "Ada L.", "examiner-1"); err != nil {
		t.Fatalf("second invite failed: %v", err)
	}
	if _, total, err := repo.Candidate().List(ctx, nil, repositories.CandidateFilters{}); err != nil || total != 1 {
		t.Errorf("expected a single candidate row, got %d (err=%v)", total, err)
	}
}

func TestExamUpdateWindow(t *testing.T) {
	ctx := context.Background()
	svc, repo := newExamTestEnv()
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	exam := repo.AddExam(&models.Exam{
		Name:            "Windowed",
		DurationMinutes: 30,
		AccessCode:      "EXAM0007",
		StartDate:       &start,
		CreatedBy:       "examiner-1",
	}, nil)

	badEnd := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Update(ctx, exam.ID, &UpdateExamRequest{EndDate: &badEnd}, "examiner-1"); !IsValidationError(err) {
		t.Errorf("expected validation error for end before start, got %v", err)
	}

	goodEnd := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	resp, err := svc.Update(ctx, exam.ID, &UpdateExamRequest{EndDate: &goodEnd}, "examiner-1")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if h, _, s := resp.EndDate.Clock(); h != 23 || s != 59 {
		t.Errorf("end date not normalized on update: %v", resp.EndDate)
	}
}

func TestExamDelete(t *testing.T) {
	ctx := context.Background()
	svc, repo := newExamTestEnv()
	exam := repo.AddExam(&models.Exam{
		Name:            "Disposable",
		DurationMinutes: 30,
		AccessCode:      "EXAM0008",
		CreatedBy:       "examiner-1",
	}, nil)

	if err := svc.Delete(ctx, exam.ID, "examiner-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.GetByID(ctx, exam.ID, "examiner-1"); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("expected ErrExamNotFound after delete, got %v", err)
	}
}
