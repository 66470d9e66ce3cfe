package casdoor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
)

// CasdoorConfig holds the connection settings for the Casdoor instance that
// owns examiner accounts.
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// UserCasdoor is the read-only UserRepository backed by Casdoor. Lookups are
// cached in redis under both the id and email keys so either entry point
// warms the other.
type UserCasdoor struct {
	client   *casdoorsdk.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewUserCasdoor(config CasdoorConfig, redisClient *redis.Client) repositories.UserRepository {
	return &UserCasdoor{
		client: casdoorsdk.NewClient(
			config.Endpoint,
			config.ClientID,
			config.ClientSecret,
			config.Certificate,
			config.OrganizationName,
			config.ApplicationName,
		),
		redis:    redisClient,
		cacheTTL: 15 * time.Minute,
	}
}

func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	return u.lookup(ctx, "id:"+id, func() (*casdoorsdk.User, error) {
		return u.client.GetUserByUserId(id)
	})
}

func (u *UserCasdoor) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.lookup(ctx, "email:"+email, func() (*casdoorsdk.User, error) {
		return u.client.GetUserByEmail(email)
	})
}

// lookup serves one identity read: cache hit, else Casdoor call, else
// ErrNotFound. Cache failures are ignored so a dead redis never blocks
// authentication.
func (u *UserCasdoor) lookup(ctx context.Context, key string, fetch func() (*casdoorsdk.User, error)) (*models.User, error) {
	if cached := u.cached(ctx, key); cached != nil {
		return cached, nil
	}

	raw, err := fetch()
	if err != nil {
		return nil, fmt.Errorf("casdoor lookup %s: %w", key, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("user %s: %w", key, repositories.ErrNotFound)
	}

	user := toUserModel(raw)
	u.store(ctx, "id:"+user.ID, user)
	u.store(ctx, "email:"+user.Email, user)
	return user, nil
}

func (u *UserCasdoor) cached(ctx context.Context, key string) *models.User {
	if u.redis == nil {
		return nil
	}
	data, err := u.redis.Get(ctx, "user:"+key).Bytes()
	if err != nil {
		return nil
	}
	var user models.User
	if json.Unmarshal(data, &user) != nil {
		return nil
	}
	return &user
}

func (u *UserCasdoor) store(ctx context.Context, key string, user *models.User) {
	if u.redis == nil {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	u.redis.Set(ctx, "user:"+key, data, u.cacheTTL)
}

func toUserModel(raw *casdoorsdk.User) *models.User {
	var createdAt, updatedAt time.Time
	if raw.CreatedTime != "" {
		createdAt, _ = time.Parse(time.RFC3339, raw.CreatedTime)
	}
	if raw.UpdatedTime != "" {
		updatedAt, _ = time.Parse(time.RFC3339, raw.UpdatedTime)
	}

	return &models.User{
		ID:        raw.Id,
		FullName:  raw.DisplayName,
		Email:     raw.Email,
		Role:      roleOf(raw),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// roleOf collapses Casdoor role assignments into the engine's two roles.
// An admin assignment (or the IsAdmin flag) wins over everything else;
// any other assignment, or none, means examiner.
func roleOf(raw *casdoorsdk.User) models.UserRole {
	if raw.IsAdmin {
		return models.RoleAdmin
	}
	for _, role := range raw.Roles {
		switch strings.ToLower(role.Name) {
		case "admin", "administrator":
			return models.RoleAdmin
		}
	}
	return models.RoleExaminer
}
