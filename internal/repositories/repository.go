package repositories

import "context"

// Repository aggregates all repository interfaces backing the exam engine.
type Repository interface {
	// Exam catalog (read-mostly for the session core)
	Exam() ExamRepository

	// Question bank (read-only for the session core)
	Question() QuestionRepository

	// Candidate directory
	Candidate() CandidateRepository

	// Session store: the core's sole mutable state
	Session() SessionRepository
	Result() ResultRepository

	// Examiner identities (Casdoor-backed, read-only)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
