package models

import (
	"time"
)

// Candidate is an exam taker, keyed naturally by email: session starts
// find-or-create on that key, so repeated starts resolve to the same row.
type Candidate struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	Name       string  `json:"name" gorm:"not null;size:100" validate:"required,min=1,max=100"`
	Email      string  `json:"email" gorm:"uniqueIndex;not null;size:255" validate:"required,email"`
	ExternalID *string `json:"external_id" gorm:"size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Sessions []ExamSession `json:"-" gorm:"foreignKey:CandidateID"`
}

func (Candidate) TableName() string {
	return "candidates"
}
