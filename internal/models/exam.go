package models

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	Name            string  `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description     *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	DurationMinutes int     `json:"duration_minutes" gorm:"not null" validate:"required,min=5,max=300"`
	TotalQuestions  int     `json:"total_questions" gorm:"not null"`

	// Per-difficulty quotas used at authoring time (see exam_service question selection)
	EasyCount   int `json:"easy_count" gorm:"default:0"`
	MediumCount int `json:"medium_count" gorm:"default:0"`
	HardCount   int `json:"hard_count" gorm:"default:0"`

	// Public token used by candidates to start a session
	AccessCode string `json:"access_code" gorm:"uniqueIndex;not null;size:20"`
	IsActive   bool   `json:"is_active" gorm:"default:true;index"`

	// Activation window; a nil bound is unbounded on that side, both bounds inclusive
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions  []ExamQuestion `json:"questions" gorm:"foreignKey:ExamID"`
	Candidates []Candidate    `json:"candidates" gorm:"many2many:exam_candidates;"`
	Sessions   []ExamSession  `json:"sessions" gorm:"foreignKey:ExamID"`

	// Computed fields (not stored)
	SessionCount   int `json:"session_count" gorm:"-"`
	SubmittedCount int `json:"submitted_count" gorm:"-"`
}

// ExamQuestion pins a question to an exam at a fixed authoring position.
// The per-session presentation order is randomized separately into AnswerSlots.
type ExamQuestion struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	ExamID     uint `json:"exam_id" gorm:"not null;index;uniqueIndex:idx_exam_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_exam_question"`
	Order      int  `json:"order" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Exam     Exam     `json:"-" gorm:"foreignKey:ExamID"`
	Question Question `json:"question" gorm:"foreignKey:QuestionID"`
}

func (Exam) TableName() string {
	return "exams"
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}
