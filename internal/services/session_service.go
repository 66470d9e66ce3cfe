package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/events"
	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
	"gorm.io/gorm"
)

// sessionService owns the lifecycle state machine
// NotStarted → Active → Submitted{Manual,Auto}. Submitted is terminal.
//
// Time is never trusted from the client and never advanced incrementally:
// every touch projects remaining = budget − (now − startedAt) from the
// original start instant, so stored drift cannot compound.
type sessionService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	randomizer *Randomizer
	scoring    ScoringService
	publisher  events.EventPublisher

	// now is swappable so tests can simulate the countdown.
	now func() time.Time
}

func NewSessionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, randomizer *Randomizer, scoring ScoringService, publisher events.EventPublisher) SessionService {
	return &sessionService{
		repo:       repo,
		db:         db,
		logger:     logger,
		validator:  v,
		randomizer: randomizer,
		scoring:    scoring,
		publisher:  publisher,
		now:        time.Now,
	}
}

// ===== START =====

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest) (*SessionView, error) {
	s.logger.Info("Starting exam session",
		"access_code", req.AccessCode,
		"email", req.Email)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Resolve exam by access code
	exam, err := s.repo.Exam().GetByAccessCode(ctx, s.db, req.AccessCode)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to resolve exam: %w", err)
	}

	if !exam.IsActive {
		return nil, ErrExamNotActive
	}

	if err := s.checkWindow(exam); err != nil {
		return nil, err
	}

	// Find or create the candidate by email
	candidate, err := s.findOrCreateCandidate(ctx, req.Name, req.Email, req.ExternalID)
	if err != nil {
		return nil, err
	}

	// Uninvited starters join the invited set
	if err := s.repo.Exam().AddCandidate(ctx, s.db, exam.ID, candidate.ID); err != nil {
		return nil, fmt.Errorf("failed to register candidate on exam: %w", err)
	}

	// Idempotent resume: one session per (exam, candidate), ever
	existing, err := s.repo.Session().GetByExamAndCandidate(ctx, s.db, exam.ID, candidate.ID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up existing session: %w", err)
	}

	if existing != nil {
		if existing.Submitted {
			return nil, ErrSessionAlreadySubmitted
		}

		// Resume does not re-arm the clock; expiry applies like any touch.
		remaining, err := s.touch(ctx, existing)
		if err != nil {
			return nil, err
		}
		existing.RemainingSeconds = remaining

		s.logger.Info("Resuming existing session",
			"session_id", existing.ID,
			"remaining_seconds", remaining)

		return s.loadView(ctx, existing.ID, true)
	}

	session, err := s.createSession(ctx, exam, candidate)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.NewEvent(events.EventSessionStarted, &events.SessionStartedEvent{
		SessionID:      session.ID,
		ExamID:         exam.ID,
		ExamName:       exam.Name,
		CandidateID:    candidate.ID,
		CandidateEmail: candidate.Email,
		StartedAt:      session.StartedAt,
		DurationSecs:   session.TotalDurationSeconds,
	}))

	s.logger.Info("Exam session started",
		"session_id", session.ID,
		"exam_id", exam.ID,
		"candidate_id", candidate.ID,
		"slots", len(session.Slots))

	// The starting actor is the taker; their own view carries the key.
	return s.loadView(ctx, session.ID, true)
}

// createSession materializes the session with its randomized, ordered slots
// in one transaction. The permutation is fixed here and never changes.
func (s *sessionService) createSession(ctx context.Context, exam *models.Exam, candidate *models.Candidate) (*models.ExamSession, error) {
	questionIDs, err := s.repo.Exam().GetQuestionIDs(ctx, s.db, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}

	ordered := s.randomizer.PermuteIDs(questionIDs)
	startedAt := s.now()
	budget := exam.DurationMinutes * 60

	session := &models.ExamSession{
		ExamID:               exam.ID,
		CandidateID:          candidate.ID,
		StartedAt:            startedAt,
		TotalDurationSeconds: budget,
		RemainingSeconds:     budget,
	}

	slots := make([]models.AnswerSlot, len(ordered))
	for i, qid := range ordered {
		slots[i] = models.AnswerSlot{
			QuestionID:      qid,
			Order:           i,
			SelectedIndices: []int{},
		}
	}
	session.Slots = slots

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return txRepo.Session().Create(ctx, nil, session)
	})
	if err != nil {
		// A concurrent start for the same pair may have won the unique
		// index; fall back to the winner's session.
		winner, getErr := s.repo.Session().GetByExamAndCandidate(ctx, s.db, exam.ID, candidate.ID)
		if getErr == nil {
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// ===== READ PATHS =====

func (s *sessionService) Get(ctx context.Context, sessionID uint, privileged bool) (*SessionView, error) {
	session, err := s.repo.Session().GetByID(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	// Submitted sessions are a stable historical view; the key still needs
	// privilege. Active sessions pass the expiry check first.
	if !session.Submitted {
		if _, err := s.touch(ctx, session); err != nil {
			return nil, err
		}
	}

	return s.loadView(ctx, sessionID, privileged)
}

func (s *sessionService) TimeRemaining(ctx context.Context, sessionID uint) (int, error) {
	session, err := s.repo.Session().GetByID(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to get session: %w", err)
	}

	if session.Submitted {
		return 0, nil
	}

	return s.touch(ctx, session)
}

// ===== SAVE =====

func (s *sessionService) SaveAnswers(ctx context.Context, sessionID uint, req *SaveAnswersRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.repo.Session().GetByIDWithDetails(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.Submitted {
		return nil, ErrSessionAlreadySubmitted
	}

	// Expiry check finalizes server-side and fails this save.
	if _, err := s.touch(ctx, session); err != nil {
		return nil, err
	}

	if err := s.mergeSelections(ctx, s.db, session, req.Answers); err != nil {
		return nil, err
	}

	s.logger.Info("Answers saved",
		"session_id", sessionID,
		"updates", len(req.Answers))

	// The saving actor is the taker; key visible.
	return s.loadView(ctx, sessionID, true)
}

// ===== SUBMIT =====

func (s *sessionService) Submit(ctx context.Context, sessionID uint, req *SubmitSessionRequest) (*ResultView, error) {
	if req != nil {
		if err := s.validator.Validate(req); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
	}

	session, err := s.repo.Session().GetByIDWithDetails(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.Submitted {
		return nil, ErrSessionAlreadySubmitted
	}

	// Merge final selections first. A submit has no expiry gate: it always
	// finalizes, however little time is left.
	if req != nil && len(req.Answers) > 0 {
		if err := s.mergeSelections(ctx, s.db, session, req.Answers); err != nil {
			return nil, err
		}
	}

	result, err := s.finalize(ctx, session, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session submitted",
		"session_id", sessionID,
		"percentage", result.Percentage)

	return buildResultView(result, false), nil
}

// finalize performs the single-winner false→true flip and scores. Exactly
// one of any number of racing finalizers wins the compare-and-set; losers
// observe AlreadySubmitted. Scoring idempotence backs this up.
func (s *sessionService) finalize(ctx context.Context, session *models.ExamSession, auto bool) (*models.Result, error) {
	won, err := s.repo.Session().MarkSubmitted(ctx, s.db, session.ID, s.now(), auto)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}
	if !won {
		return nil, ErrSessionAlreadySubmitted
	}

	result, err := s.scoring.Evaluate(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to score session: %w", err)
	}

	s.publishResultEvent(ctx, session, result, auto)

	return result, nil
}

// ===== LIST (EXAMINER) =====

func (s *sessionService) List(ctx context.Context, filters repositories.SessionFilters, userID string) (*SessionListResponse, error) {
	if err := s.requireExaminer(ctx, userID, 0, "list"); err != nil {
		return nil, err
	}

	sessions, total, err := s.repo.Session().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return s.buildListResponse(sessions, total, filters), nil
}

func (s *sessionService) GetByExam(ctx context.Context, examID uint, filters repositories.SessionFilters, userID string) (*SessionListResponse, error) {
	if err := s.requireExaminer(ctx, userID, examID, "list_by_exam"); err != nil {
		return nil, err
	}

	sessions, total, err := s.repo.Session().GetByExam(ctx, s.db, examID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exam sessions: %w", err)
	}

	return s.buildListResponse(sessions, total, filters), nil
}

func (s *sessionService) requireExaminer(ctx context.Context, userID string, resourceID uint, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return NewPermissionError(userID, resourceID, "session", action, "unknown user")
	}
	if user.Role != models.RoleExaminer && user.Role != models.RoleAdmin {
		return NewPermissionError(userID, resourceID, "session", action, "insufficient role")
	}
	return nil
}

func (s *sessionService) publishEvent(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.TopicSessions, event); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", event.Type,
			"error", err)
	}
}

func (s *sessionService) publishResultEvent(ctx context.Context, session *models.ExamSession, result *models.Result, auto bool) {
	// Exam and candidate may not be preloaded on every path
	exam, err := s.repo.Exam().GetByID(ctx, s.db, session.ExamID)
	if err != nil {
		s.logger.Error("Failed to load exam for result event", "exam_id", session.ExamID, "error", err)
		return
	}
	candidate, err := s.repo.Candidate().GetByID(ctx, s.db, session.CandidateID)
	if err != nil {
		s.logger.Error("Failed to load candidate for result event", "candidate_id", session.CandidateID, "error", err)
		return
	}

	s.publishEvent(ctx, events.NewEvent(events.EventResultEvaluated, &events.ResultEvaluatedEvent{
		SessionID:      session.ID,
		ResultID:       result.ID,
		ExamID:         exam.ID,
		ExamName:       exam.Name,
		CandidateID:    candidate.ID,
		CandidateName:  candidate.Name,
		CandidateEmail: candidate.Email,
		TotalQuestions: result.TotalQuestions,
		CorrectAnswers: result.CorrectAnswers,
		WrongAnswers:   result.WrongAnswers,
		Percentage:     result.Percentage,
		AutoSubmitted:  auto,
		EvaluatedAt:    result.EvaluatedAt,
	}))
}
