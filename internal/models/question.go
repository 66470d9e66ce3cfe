package models

import (
	"time"

	"gorm.io/datatypes"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// Question is a multiple-choice question with one or more correct options.
// Options and the correct index set are stored as JSONB; the correct set is
// stripped from views for non-privileged callers by the session service.
type Question struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	Text      string  `json:"text" gorm:"type:text;not null" validate:"required,min=1,max=2000"`
	Paragraph *string `json:"paragraph" gorm:"type:text"`
	ImageURL  *string `json:"image_url" gorm:"size:500"`

	Options        datatypes.JSONSlice[QuestionOption] `json:"options" gorm:"type:jsonb"`
	CorrectIndices datatypes.JSONSlice[int]            `json:"correct_indices" gorm:"type:jsonb"`

	// Categorization
	Difficulty DifficultyLevel             `json:"difficulty" gorm:"default:medium;index" validate:"required,oneof=easy medium hard"`
	Tags       datatypes.JSONSlice[string] `json:"tags" gorm:"type:jsonb"`

	// Metadata
	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Statistics (computed)
	UsageCount int `json:"usage_count" gorm:"-"`
}

type QuestionOption struct {
	Index    int     `json:"index"`
	Text     string  `json:"text"`
	ImageURL *string `json:"image_url,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}
