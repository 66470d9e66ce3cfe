package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
)

// ExamCreateRequest carries everything needed to author an exam. The question
// set comes either as explicit ids or as per-difficulty quotas; explicit ids
// win when both are present.
type ExamCreateRequest struct {
	Name            string     `json:"name" validate:"required,exam_name"`
	Description     *string    `json:"description" validate:"omitempty,exam_description"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,exam_duration"`
	TotalQuestions  int        `json:"total_questions" validate:"omitempty,min=0,max=200"`
	EasyCount       int        `json:"easy_count" validate:"omitempty,min=0,max=200"`
	MediumCount     int        `json:"medium_count" validate:"omitempty,min=0,max=200"`
	HardCount       int        `json:"hard_count" validate:"omitempty,min=0,max=200"`
	QuestionIDs     []uint     `json:"question_ids" validate:"omitempty,dive,min=1"`
	IsActive        bool       `json:"is_active"`
	StartDate       *time.Time `json:"start_date" validate:"omitempty,exam_date"`
	EndDate         *time.Time `json:"end_date" validate:"omitempty,exam_date"`
}

type ExamUpdateRequest struct {
	Name            *string    `json:"name" validate:"omitempty,exam_name"`
	Description     *string    `json:"description" validate:"omitempty,exam_description"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,exam_duration"`
	IsActive        *bool      `json:"is_active"`
	StartDate       *time.Time `json:"start_date" validate:"omitempty,exam_date"`
	EndDate         *time.Time `json:"end_date" validate:"omitempty,exam_date"`
}

type QuestionOptionRequest struct {
	Text     string  `json:"text" validate:"required,min=1,max=500"`
	ImageURL *string `json:"image_url" validate:"omitempty,url,max=500"`
}

type QuestionCreateRequest struct {
	Text           string                  `json:"text" validate:"required,min=1,max=2000"`
	Paragraph      *string                 `json:"paragraph" validate:"omitempty,max=5000"`
	ImageURL       *string                 `json:"image_url" validate:"omitempty,url,max=500"`
	Options        []QuestionOptionRequest `json:"options" validate:"required,min=2,max=10,dive"`
	CorrectIndices []int                   `json:"correct_indices" validate:"required,min=1,dive,min=0"`
	Difficulty     models.DifficultyLevel  `json:"difficulty" validate:"required,difficulty_level"`
	Tags           []string                `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

type QuestionUpdateRequest struct {
	Text           *string                 `json:"text" validate:"omitempty,min=1,max=2000"`
	Paragraph      *string                 `json:"paragraph" validate:"omitempty,max=5000"`
	ImageURL       *string                 `json:"image_url" validate:"omitempty,url,max=500"`
	Options        []QuestionOptionRequest `json:"options" validate:"omitempty,min=2,max=10,dive"`
	CorrectIndices []int                   `json:"correct_indices" validate:"omitempty,min=1,dive,min=0"`
	Difficulty     *models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	Tags           []string                `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

// CheckCorrectIndices verifies every correct index points at an option that
// exists and that the set holds no duplicates. Tag validation cannot express
// this cross-field rule.
func CheckCorrectIndices(correctIndices []int, optionCount int) ValidationErrors {
	var errors ValidationErrors

	seen := make(map[int]bool, len(correctIndices))
	for i, idx := range correctIndices {
		if idx < 0 || idx >= optionCount {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("correct_indices[%d]", i),
				Message: fmt.Sprintf("index %d is outside the option range [0, %d)", idx, optionCount),
				Value:   idx,
				Rule:    "option_range",
			})
			continue
		}
		if seen[idx] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("correct_indices[%d]", i),
				Message: "duplicate correct index",
				Value:   idx,
				Rule:    "no_duplicates",
			})
		}
		seen[idx] = true
	}

	return errors
}

// CheckTags rejects blank tags that slip past length tags.
func CheckTags(tags []string) ValidationErrors {
	var errors ValidationErrors

	for i, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("tags[%d]", i),
				Message: "tag cannot be empty",
				Value:   tag,
				Rule:    "no_blank",
			})
		}
	}

	return errors
}
