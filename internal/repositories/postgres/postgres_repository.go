package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ExamForge-2025/exam-engine/internal/cache"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/repositories/casdoor"
)

// PostgreSQLRepository is the production Repository: GORM/PostgreSQL for all
// engine state, redis caching on the catalog side, Casdoor for examiner
// identities.
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	exam      repositories.ExamRepository
	question  repositories.QuestionRepository
	candidate repositories.CandidateRepository
	session   repositories.SessionRepository
	result    repositories.ResultRepository
	user      repositories.UserRepository
}

// RepositoryConfig carries the connections the repository layer is built on.
type RepositoryConfig struct {
	DB            *gorm.DB
	RedisClient   *redis.Client
	CasdoorConfig casdoor.CasdoorConfig
}

func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	repo := &PostgreSQLRepository{
		db:           config.DB,
		redisClient:  config.RedisClient,
		cacheManager: cache.NewCacheManager(config.RedisClient),
		user:         casdoor.NewUserCasdoor(config.CasdoorConfig, config.RedisClient),
	}
	repo.bindSubRepos(config.DB)
	return repo
}

// bindSubRepos wires the entity repositories against the given handle, which
// is either the root connection or an open transaction. Catalog repositories
// get the cache; session state is never cached because remaining time is
// recomputed on every touch.
func (r *PostgreSQLRepository) bindSubRepos(db *gorm.DB) {
	r.exam = NewExamPostgreSQL(db, r.redisClient)
	r.question = NewQuestionPostgreSQL(db, r.redisClient)
	r.candidate = NewCandidatePostgreSQL(db)
	r.session = NewSessionPostgreSQL(db)
	r.result = NewResultPostgreSQL(db)
}

func (r *PostgreSQLRepository) Exam() repositories.ExamRepository           { return r.exam }
func (r *PostgreSQLRepository) Question() repositories.QuestionRepository   { return r.question }
func (r *PostgreSQLRepository) Candidate() repositories.CandidateRepository { return r.candidate }
func (r *PostgreSQLRepository) Session() repositories.SessionRepository     { return r.session }
func (r *PostgreSQLRepository) Result() repositories.ResultRepository       { return r.result }
func (r *PostgreSQLRepository) User() repositories.UserRepository           { return r.user }

// WithTransaction runs fn against a repository whose sub-repositories all
// share one database transaction. The user repository is external and passes
// through unchanged.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &PostgreSQLRepository{
			db:           tx,
			redisClient:  r.redisClient,
			cacheManager: r.cacheManager,
			user:         r.user,
		}
		txRepo.bindSubRepos(tx)
		return fn(txRepo)
	})
}

func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}

	if r.redisClient != nil {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping: %w", err)
		}
	}
	return nil
}

func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("close redis: %w", err)
		}
	}
	return nil
}

// RepositoryManager owns repository lifecycle for main.go.
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{config: config}
}

// Initialize verifies both connections before handing out the repository, so
// a misconfigured database fails startup instead of the first request.
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if rm.config.RedisClient != nil {
		if err := rm.config.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable: %w", err)
		}
	}

	rm.repo = NewPostgreSQLRepository(rm.config)
	return nil
}

func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	return rm.repo.Ping(ctx)
}

func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}
	return rm.repo.Close()
}
