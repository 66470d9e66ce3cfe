package models

import (
	"time"
)

type UserRole string

const (
	RoleExaminer UserRole = "examiner"
	RoleAdmin    UserRole = "admin"
)

// User is an examiner identity as provided by Casdoor. Examiners author
// exams and questions and are the privileged callers for session views.
type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	FullName string   `json:"full_name" gorm:"not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     UserRole `json:"role" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
