package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExamSession is one candidate's single timed attempt at one exam.
// There is exactly one session per (exam, candidate) pair; the composite
// unique index enforces it at the store level.
//
// Time enforcement is lazy: RemainingSeconds is a projection recomputed on
// every touch from TotalDurationSeconds and StartedAt, never advanced by a
// background ticker. An expired session therefore stays unsubmitted in
// storage until the next call observes it; that call finalizes it before
// returning.
type ExamSession struct {
	ID          uint `json:"id" gorm:"primaryKey"`
	ExamID      uint `json:"exam_id" gorm:"not null;index;uniqueIndex:idx_exam_candidate_session"`
	CandidateID uint `json:"candidate_id" gorm:"not null;index;uniqueIndex:idx_exam_candidate_session"`

	// Timing. StartedAt is set once at creation; TotalDurationSeconds freezes
	// the budget so later exam edits cannot change a running session.
	StartedAt            time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt          *time.Time `json:"submitted_at"`
	TotalDurationSeconds int        `json:"total_duration_seconds" gorm:"not null"`
	RemainingSeconds     int        `json:"remaining_seconds" gorm:"not null"`

	// Submitted is one-way false→true; AutoSubmitted is meaningful only when
	// Submitted is true.
	Submitted     bool `json:"submitted" gorm:"default:false;index"`
	AutoSubmitted bool `json:"auto_submitted" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam      Exam         `json:"exam" gorm:"foreignKey:ExamID"`
	Candidate Candidate    `json:"candidate" gorm:"foreignKey:CandidateID"`
	Slots     []AnswerSlot `json:"slots" gorm:"foreignKey:SessionID"`
	Result    *Result      `json:"result" gorm:"foreignKey:SessionID"`
}

// AnswerSlot is one question instance within a session at a fixed
// presentation position. Membership and Order are fixed at session creation;
// only SelectedIndices mutates afterwards, and never after submission.
type AnswerSlot struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	SessionID  uint `json:"session_id" gorm:"not null;index;uniqueIndex:idx_session_slot_order"`
	QuestionID uint `json:"question_id" gorm:"not null;index"`
	Order      int  `json:"order" gorm:"not null;uniqueIndex:idx_session_slot_order"`

	SelectedIndices datatypes.JSONSlice[int] `json:"selected_indices" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Session  ExamSession `json:"-" gorm:"foreignKey:SessionID"`
	Question Question    `json:"question" gorm:"foreignKey:QuestionID"`
}

// Result is the score of a finalized session, created exactly once on the
// first transition into Submitted and never mutated afterwards (except the
// ResultEmailed delivery marker owned by the external mailer).
type Result struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	SessionID uint `json:"session_id" gorm:"not null;uniqueIndex"`

	TotalQuestions int     `json:"total_questions" gorm:"not null"`
	CorrectAnswers int     `json:"correct_answers" gorm:"not null"`
	WrongAnswers   int     `json:"wrong_answers" gorm:"not null"`
	Percentage     float64 `json:"percentage" gorm:"not null"`

	EvaluatedAt   time.Time `json:"evaluated_at" gorm:"not null"`
	ResultEmailed bool      `json:"result_emailed" gorm:"default:false"`

	// Relations
	Session ExamSession `json:"-" gorm:"foreignKey:SessionID"`
}

func (ExamSession) TableName() string {
	return "exam_sessions"
}

func (AnswerSlot) TableName() string {
	return "answer_slots"
}

func (Result) TableName() string {
	return "results"
}
