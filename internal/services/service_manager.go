package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ExamForge-2025/exam-engine/internal/events"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
	"gorm.io/gorm"
)

// ServiceManagerConfig tunes service construction.
type ServiceManagerConfig struct {
	EnableDebugLogging bool
	LogLevel           slog.Level

	// Randomness seed; zero means seed from the clock. Tests pin it.
	RandomSeed int64

	DefaultTimeout time.Duration
}

type serviceManager struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	config    ServiceManagerConfig

	examService      ExamService
	questionService  QuestionService
	sessionService   SessionService
	scoringService   ScoringService
	candidateService CandidateService
	resultService    ResultService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
		publisher: publisher,
		config:    config,
	}
}

func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ServiceManager {
	return NewServiceManager(db, repo, logger, v, publisher, ServiceManagerConfig{
		LogLevel:       slog.LevelInfo,
		DefaultTimeout: 30 * time.Second,
	})
}

// Initialize builds the services. Scoring comes first because the session
// service finalizes through it; the authoring services share the session
// side's randomizer so one seed pins the whole engine in tests.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	randomizer := NewRandomizer()
	if sm.config.RandomSeed != 0 {
		randomizer = NewSeededRandomizer(sm.config.RandomSeed)
	}

	sm.scoringService = NewScoringService(sm.repo, sm.db, sm.logger)
	sm.sessionService = NewSessionService(sm.repo, sm.db, sm.logger, sm.validator, randomizer, sm.scoringService, sm.publisher)
	sm.examService = NewExamService(sm.repo, sm.db, sm.logger, sm.validator, randomizer)
	sm.questionService = NewQuestionService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.candidateService = NewCandidateService(sm.repo, sm.db, sm.logger)
	sm.resultService = NewResultService(sm.repo, sm.db, sm.logger)

	sm.initialized = true
	sm.logger.Info("service manager initialized", "seeded", sm.config.RandomSeed != 0)
	return nil
}

// mustBeInitialized guards the getters: handing out a nil service would only
// surface as a panic deep inside a handler.
func (sm *serviceManager) mustBeInitialized() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.examService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.questionService
}

func (sm *serviceManager) Session() SessionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.sessionService
}

func (sm *serviceManager) Scoring() ScoringService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.scoringService
}

func (sm *serviceManager) Candidate() CandidateService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.candidateService
}

func (sm *serviceManager) Result() ResultService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.resultService
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if repoManager, ok := sm.repo.(repositories.RepositoryManager); ok {
		if err := repoManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("repository health check: %w", err)
		}
	}
	return nil
}

// Shutdown closes the publisher and the repository layer. Close failures are
// logged, not returned: shutdown keeps going.
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("closing event publisher", "error", err)
		}
	}
	if repoManager, ok := sm.repo.(repositories.RepositoryManager); ok {
		if err := repoManager.Shutdown(ctx); err != nil {
			sm.logger.Error("shutting down repositories", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("service manager shut down")
	return nil
}

// WithTimeout derives a context bounded by the configured default timeout.
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}
