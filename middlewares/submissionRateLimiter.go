package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"circus-pes/models"
)

const submissionWindow = 24 * time.Hour

// SubmissionRateLimiter caps the submissions of each user per 24h window.
// Admins are not limited. It must run after Authenticate.
func SubmissionRateLimiter(rdb redis.Cmdable, prefix string, limit int, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		if user.Role.AtLeast(models.RoleAdmin) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := prefix + ":" + user.ID

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Error("rate limiter increment", zap.String("key", key), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}

		// Set TTL only for the first increment
		if count == 1 {
			if err := rdb.Expire(ctx, key, submissionWindow).Err(); err != nil {
				log.Error("rate limiter expire", zap.String("key", key), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
				return
			}
		}

		if count > int64(limit) {
			retryAfter, _ := rdb.TTL(ctx, key).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()
	}
}
