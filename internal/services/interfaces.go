package services

import (
	"context"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateExamRequest = validator.ExamCreateRequest
type UpdateExamRequest = validator.ExamUpdateRequest
type CreateQuestionRequest = validator.QuestionCreateRequest
type UpdateQuestionRequest = validator.QuestionUpdateRequest

type ExamResponse struct {
	*models.Exam
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type ExamListResponse struct {
	Exams []*ExamResponse `json:"exams"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

type QuestionResponse struct {
	*models.Question
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type QuestionListResponse struct {
	Questions []*QuestionResponse `json:"questions"`
	Total     int64               `json:"total"`
	Page      int                 `json:"page"`
	Size      int                 `json:"size"`
}

// ===== SESSION RELATED DTOs =====

type StartSessionRequest struct {
	AccessCode string  `json:"access_code" validate:"required,access_code"`
	Name       string  `json:"name" validate:"required,max=100"`
	Email      string  `json:"email" validate:"required,email,max=255"`
	ExternalID *string `json:"external_id" validate:"omitempty,max=100"`
}

// AnswerSelection is one question's selected option set, keyed by question
// id. Slots not named in a save are left unchanged.
type AnswerSelection struct {
	QuestionID      uint  `json:"question_id" validate:"required"`
	SelectedIndices []int `json:"selected_indices" validate:"dive,min=0"`
}

type SaveAnswersRequest struct {
	Answers []AnswerSelection `json:"answers" validate:"required,dive"`
}

type SubmitSessionRequest struct {
	Answers []AnswerSelection `json:"answers" validate:"omitempty,dive"`
}

// OptionView is an answer option as shown to a taker. The correctness of an
// option is never part of this view; correct indices travel separately and
// only when visible.
type OptionView struct {
	Index    int     `json:"index"`
	Text     string  `json:"text"`
	ImageURL *string `json:"image_url,omitempty"`
}

// AnswerSlotView is one ordered question entry of a session view.
type AnswerSlotView struct {
	Order           int          `json:"order"`
	QuestionID      uint         `json:"question_id"`
	Text            string       `json:"text"`
	Paragraph       *string      `json:"paragraph,omitempty"`
	ImageURL        *string      `json:"image_url,omitempty"`
	Options         []OptionView `json:"options"`
	SelectedIndices []int        `json:"selected_indices"`
	// CorrectIndices is attached only for privileged callers or the taker's
	// own live view; historical non-privileged reads never carry it.
	CorrectIndices []int `json:"correct_indices,omitempty"`
}

type SessionView struct {
	ID               uint             `json:"id"`
	ExamID           uint             `json:"exam_id"`
	ExamName         string           `json:"exam_name"`
	CandidateID      uint             `json:"candidate_id"`
	CandidateName    string           `json:"candidate_name"`
	CandidateEmail   string           `json:"candidate_email"`
	StartedAt        time.Time        `json:"started_at"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Submitted        bool             `json:"submitted"`
	AutoSubmitted    bool             `json:"auto_submitted"`
	Slots            []AnswerSlotView `json:"slots"`
	Result           *ResultView      `json:"result,omitempty"`
}

type ResultView struct {
	SessionID      uint      `json:"session_id"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	WrongAnswers   int       `json:"wrong_answers"`
	Percentage     float64   `json:"percentage"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
	AutoSubmitted  bool      `json:"auto_submitted"`
}

type SessionListResponse struct {
	Sessions []*SessionView `json:"sessions"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	Size     int            `json:"size"`
}

// ===== SERVICE INTERFACES =====

// SessionService owns the session lifecycle state machine. Every operation
// that touches an active session re-derives remaining time before acting.
type SessionService interface {
	// Start resolves the exam by access code, finds or creates the candidate
	// by email, and either materializes a new session with randomized slots
	// or returns the existing unsubmitted one (idempotent resume-via-start).
	Start(ctx context.Context, req *StartSessionRequest) (*SessionView, error)

	// Get returns the session view, finalizing it first if time ran out.
	// The answer key is attached only for privileged callers.
	Get(ctx context.Context, sessionID uint, privileged bool) (*SessionView, error)

	// SaveAnswers merges the given selections into matching slots. Partial
	// saves are allowed; unnamed slots stay untouched.
	SaveAnswers(ctx context.Context, sessionID uint, req *SaveAnswersRequest) (*SessionView, error)

	// Submit finalizes the session. Optional final selections are merged
	// first; there is no expiry gate, a submit always finalizes.
	Submit(ctx context.Context, sessionID uint, req *SubmitSessionRequest) (*ResultView, error)

	// TimeRemaining projects the current remaining seconds without mutating
	// answers. Expiry observed here finalizes the session too.
	TimeRemaining(ctx context.Context, sessionID uint) (int, error)

	// List operations (examiner-facing)
	List(ctx context.Context, filters repositories.SessionFilters, userID string) (*SessionListResponse, error)
	GetByExam(ctx context.Context, examID uint, filters repositories.SessionFilters, userID string) (*SessionListResponse, error)
}

// ScoringService computes one immutable Result per session.
type ScoringService interface {
	// Evaluate scores the session's slots against the question keys. It is
	// idempotent: an existing Result is returned untouched.
	Evaluate(ctx context.Context, sessionID uint) (*models.Result, error)
}

type ExamService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	GetByIDWithDetails(ctx context.Context, id uint, userID string) (*ExamResponse, error)
	Update(ctx context.Context, id uint, req *UpdateExamRequest, userID string) (*ExamResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// List operations
	List(ctx context.Context, filters repositories.ExamFilters, userID string) (*ExamListResponse, error)
	GetByCreator(ctx context.Context, creatorID string, filters repositories.ExamFilters) (*ExamListResponse, error)

	// Activation
	SetActive(ctx context.Context, id uint, active bool, userID string) error

	// Question set management. SelectByQuota runs the per-difficulty
	// shuffle-and-take selection once and fixes the resulting set.
	SetQuestions(ctx context.Context, examID uint, questionIDs []uint, userID string) error
	SelectByQuota(ctx context.Context, examID uint, userID string) error

	// Invitations
	InviteCandidate(ctx context.Context, examID uint, email, name string, userID string) error

	// Statistics
	GetStats(ctx context.Context, id uint, userID string) (*repositories.ExamStats, error)

	// Permission checks
	CanEdit(ctx context.Context, examID uint, userID string) (bool, error)
}

type QuestionService interface {
	Create(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*QuestionResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error)
	CountByDifficulty(ctx context.Context) (*repositories.QuestionPoolCounts, error)
}

type CandidateService interface {
	// FindOrCreate is idempotent on email, the directory's natural key.
	FindOrCreate(ctx context.Context, name, email string, externalID *string) (*models.Candidate, error)
	GetByID(ctx context.Context, id uint) (*models.Candidate, error)
	List(ctx context.Context, filters repositories.CandidateFilters) ([]*models.Candidate, int64, error)
}

type ResultService interface {
	GetBySession(ctx context.Context, sessionID uint, userID string) (*ResultView, error)
	GetByExam(ctx context.Context, examID uint, userID string) ([]*ResultView, error)

	// ExportExcel renders all of an exam's results as an XLSX workbook.
	ExportExcel(ctx context.Context, examID uint, userID string) ([]byte, error)

	// MarkEmailed is called by the mail pipeline after delivery.
	MarkEmailed(ctx context.Context, resultID uint) error
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Exam() ExamService
	Question() QuestionService
	Session() SessionService
	Scoring() ScoringService
	Candidate() CandidateService
	Result() ResultService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
