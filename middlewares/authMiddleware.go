package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/models"
	authUtils "circus-pes/utils"
)

const userKey = "user"

// UserLookup loads the current row of a token's user so role changes
// apply without a new sign-in.
type UserLookup interface {
	Get(ctx context.Context, id string) (models.User, error)
}

func bearerToken(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	// Extracting token from "Bearer <token>" format
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return authHeader
}

// Authenticate rejects requests without a valid token for a known user.
func Authenticate(secret []byte, users UserLookup, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			return
		}

		userID, err := authUtils.ParseToken(tokenString, secret)
		if err != nil {
			log.Debug("token validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			return
		}

		user, err := users.Get(c.Request.Context(), userID)
		if err != nil {
			if apperr.NotFound.Has(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
				return
			}
			log.Error("load authenticated user", zap.String("user_id", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}

		c.Set(userKey, &user)
		c.Next()
	}
}

// OptionalAuth resolves the caller when a valid token is sent and lets
// anonymous requests through otherwise.
func OptionalAuth(secret []byte, users UserLookup, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.Next()
			return
		}

		userID, err := authUtils.ParseToken(tokenString, secret)
		if err != nil {
			c.Next()
			return
		}

		user, err := users.Get(c.Request.Context(), userID)
		if err != nil {
			if !apperr.NotFound.Has(err) {
				log.Warn("load optional user", zap.String("user_id", userID), zap.Error(err))
			}
			c.Next()
			return
		}

		c.Set(userKey, &user)
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		if !user.Role.AtLeast(min) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": min.String() + " role required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the caller resolved by the auth middlewares, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
