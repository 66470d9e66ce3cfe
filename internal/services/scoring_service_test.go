package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"gorm.io/datatypes"
)

func newScoringTestEnv() (*scoringService, *MockRepository) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := NewMockRepository()
	svc := &scoringService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC) },
	}
	return svc, repo
}

// seedScoredSession stores a session whose slots carry the given selections
// against questions with the given keys, one slot per entry.
func seedScoredSession(t *testing.T, repo *MockRepository, keys [][]int, selections [][]int) uint {
	t.Helper()
	if len(keys) != len(selections) {
		t.Fatalf("keys and selections must pair up: %d vs %d", len(keys), len(selections))
	}

	session := &models.ExamSession{
		ExamID:               1,
		CandidateID:          1,
		StartedAt:            time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		TotalDurationSeconds: 1800,
		RemainingSeconds:     1800,
	}
	for i, key := range keys {
		question := repo.AddQuestion(&models.Question{
			Text:           "question",
			Options:        threeOptions(),
			CorrectIndices: datatypes.JSONSlice[int](key),
			Difficulty:     models.DifficultyMedium,
			CreatedBy:      "examiner-1",
		})
		session.Slots = append(session.Slots, models.AnswerSlot{
			QuestionID:      question.ID,
			Order:           i,
			SelectedIndices: datatypes.JSONSlice[int](selections[i]),
		})
	}
	if err := repo.Session().Create(context.Background(), nil, session); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return session.ID
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("selection order and duplicates are irrelevant", func(t *testing.T) {
		svc, repo := newScoringTestEnv()
		sessionID := seedScoredSession(t, repo,
			[][]int{{0, 1}},
			[][]int{{1, 0, 1}})

		result, err := svc.Evaluate(ctx, sessionID)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if result.CorrectAnswers != 1 {
			t.Errorf("set comparison must ignore order and duplicates, got %d correct", result.CorrectAnswers)
		}
	})

	t.Run("subset and superset both score wrong", func(t *testing.T) {
		svc, repo := newScoringTestEnv()
		sessionID := seedScoredSession(t, repo,
			[][]int{{0, 1}, {0, 1}},
			[][]int{{0}, {0, 1, 2}})

		result, err := svc.Evaluate(ctx, sessionID)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if result.CorrectAnswers != 0 || result.WrongAnswers != 2 {
			t.Errorf("expected 0 correct 2 wrong, got %d/%d", result.CorrectAnswers, result.WrongAnswers)
		}
	})

	t.Run("empty selection matches an empty key", func(t *testing.T) {
		svc, repo := newScoringTestEnv()
		sessionID := seedScoredSession(t, repo,
			[][]int{{}},
			[][]int{{}})

		result, err := svc.Evaluate(ctx, sessionID)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if result.CorrectAnswers != 1 {
			t.Errorf("empty selection against an empty key is correct, got %d", result.CorrectAnswers)
		}
	})

	t.Run("percentage rounds to two decimals", func(t *testing.T) {
		svc, repo := newScoringTestEnv()
		sessionID := seedScoredSession(t, repo,
			[][]int{{0}, {0}, {0}},
			[][]int{{0}, {1}, {1}})

		result, err := svc.Evaluate(ctx, sessionID)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if result.Percentage != 33.33 {
			t.Errorf("expected 33.33, got %v", result.Percentage)
		}
	})

	t.Run("empty session scores zero", func(t *testing.T) {
		svc, repo := newScoringTestEnv()
		sessionID := seedScoredSession(t, repo, nil, nil)

		result, err := svc.Evaluate(ctx, sessionID)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if result.TotalQuestions != 0 || result.Percentage != 0 {
			t.Errorf("expected empty zero result, got total=%d pct=%v", result.TotalQuestions, result.Percentage)
		}
	})

	t.Run("evaluation is idempotent", func(t *testing.T) {
		svc, repo := newScoringTestEnv()
		sessionID := seedScoredSession(t, repo,
			[][]int{{0}},
			[][]int{{0}})

		first, err := svc.Evaluate(ctx, sessionID)
		if err != nil {
			t.Fatalf("first Evaluate failed: %v", err)
		}
		second, err := svc.Evaluate(ctx, sessionID)
		if err != nil {
			t.Fatalf("second Evaluate failed: %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("second evaluation created a new result: %d vs %d", second.ID, first.ID)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		svc, _ := newScoringTestEnv()
		if _, err := svc.Evaluate(ctx, 404); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestSetEqual(t *testing.T) {
	cases := []struct {
		name     string
		selected []int
		correct  []int
		want     bool
	}{
		{"exact match", []int{0, 2}, []int{0, 2}, true},
		{"reversed", []int{2, 0}, []int{0, 2}, true},
		{"duplicates collapse", []int{0, 0, 2}, []int{0, 2}, true},
		{"subset", []int{0}, []int{0, 2}, false},
		{"superset", []int{0, 1, 2}, []int{0, 2}, false},
		{"disjoint", []int{1}, []int{0, 2}, false},
		{"both empty", nil, nil, true},
		{"empty against key", nil, []int{0}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := setEqual(tc.selected, tc.correct); got != tc.want {
				t.Errorf("setEqual(%v, %v) = %v, want %v", tc.selected, tc.correct, got, tc.want)
			}
		})
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		correct int
		total   int
		want    float64
	}{
		{0, 0, 0},
		{2, 2, 100},
		{1, 2, 50},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 7, 14.29},
	}

	for _, tc := range cases {
		if got := percentage(tc.correct, tc.total); got != tc.want {
			t.Errorf("percentage(%d, %d) = %v, want %v", tc.correct, tc.total, got, tc.want)
		}
	}
}
