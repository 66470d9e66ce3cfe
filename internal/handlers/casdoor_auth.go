package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/ExamForge-2025/exam-engine/internal/config"
	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
)

// CasdoorAuthMiddleware authenticates examiner requests using the Casdoor
// SDK. Candidate-facing session routes stay outside it on purpose: takers
// authenticate by access code, not by identity provider.
type CasdoorAuthMiddleware struct {
	client   *casdoorsdk.Client
	userRepo repositories.UserRepository
}

func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		client: casdoorsdk.NewClient(
			cfg.Endpoint,
			cfg.ClientID,
			cfg.ClientSecret,
			cfg.Cert,
			cfg.Organization,
			cfg.Application,
		),
		userRepo: userRepo,
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}

func abortForbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error":   "forbidden",
		"message": message,
	})
}

// AuthMiddleware parses the bearer token and puts the resolved user on the
// gin context under user_id, user, user_role, and user_email.
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		claims, err := cam.client.ParseJwtToken(token)
		if err != nil {
			abortUnauthorized(c, "invalid token: "+err.Error())
			return
		}

		user, err := cam.resolveUser(c.Request.Context(), claims)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)
		c.Set("user_email", user.Email)
		c.Next()
	}
}

// RequireRoleMiddleware gates a route on the caller's role. Admin passes
// every gate.
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRoleFromContext(c)
		if err != nil {
			abortForbidden(c, err.Error())
			return
		}

		if role == models.RoleAdmin {
			c.Next()
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		abortForbidden(c, "insufficient permissions")
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// resolveUser reads the examiner profile behind the token. The repository
// (Casdoor plus cache) is authoritative; when it cannot be reached, the
// claims themselves carry enough to build a usable profile.
func (cam *CasdoorAuthMiddleware) resolveUser(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	if claims.Id == "" {
		return nil, errors.New("token carries no user id")
	}

	if user, err := cam.userRepo.GetByID(ctx, claims.Id); err == nil {
		return user, nil
	}

	role := models.RoleExaminer
	if claims.User.IsAdmin || strings.EqualFold(claims.User.Type, "admin") {
		role = models.RoleAdmin
	}
	now := time.Now()
	return &models.User{
		ID:        claims.Id,
		FullName:  claims.User.DisplayName,
		Email:     claims.User.Email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetUserIDFromContext reads the authenticated caller's id set by
// AuthMiddleware.
func GetUserIDFromContext(c *gin.Context) (string, error) {
	id, ok := c.Get("user_id")
	if !ok {
		return "", errors.New("no authenticated user on request")
	}
	s, ok := id.(string)
	if !ok {
		return "", errors.New("malformed user id on request")
	}
	return s, nil
}

// GetUserRoleFromContext reads the authenticated caller's role.
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	v, ok := c.Get("user_role")
	if !ok {
		return "", errors.New("no role on request")
	}
	role, ok := v.(models.UserRole)
	if !ok {
		return "", errors.New("malformed role on request")
	}
	return role, nil
}
