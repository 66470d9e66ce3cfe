package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "exam-engine"
	EventVersion = "1.0"
)

// TopicSessions is the broker topic carrying all session lifecycle events.
const TopicSessions = "exam-engine.sessions"

// Event types published by the engine
const (
	EventSessionStarted  = "session.started"
	EventSessionExpired  = "session.expired"
	EventResultEvaluated = "session.result_evaluated"
)

// Event is the envelope for every message published to the broker.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an envelope with a fresh id and the engine's identity.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// SessionStartedEvent is emitted when a new session is materialized.
type SessionStartedEvent struct {
	SessionID      uint      `json:"session_id"`
	ExamID         uint      `json:"exam_id"`
	ExamName       string    `json:"exam_name"`
	CandidateID    uint      `json:"candidate_id"`
	CandidateEmail string    `json:"candidate_email"`
	StartedAt      time.Time `json:"started_at"`
	DurationSecs   int       `json:"duration_seconds"`
}

// ResultEvaluatedEvent is emitted exactly once per session, after the single
// winning submit has been scored. The external mailer consumes it to deliver
// the result email and then flips the result's emailed flag.
type ResultEvaluatedEvent struct {
	SessionID      uint      `json:"session_id"`
	ResultID       uint      `json:"result_id"`
	ExamID         uint      `json:"exam_id"`
	ExamName       string    `json:"exam_name"`
	CandidateID    uint      `json:"candidate_id"`
	CandidateName  string    `json:"candidate_name"`
	CandidateEmail string    `json:"candidate_email"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	WrongAnswers   int       `json:"wrong_answers"`
	Percentage     float64   `json:"percentage"`
	AutoSubmitted  bool      `json:"auto_submitted"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}
