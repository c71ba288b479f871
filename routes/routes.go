package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"circus-pes/controllers"
	"circus-pes/middlewares"
	"circus-pes/models"
)

// Deps carries the controllers and middleware inputs shared by the route
// groups.
type Deps struct {
	Auth          *controllers.AuthController
	Items         *controllers.ItemController
	Responses     *controllers.ResponseController
	PatchVersions *controllers.PatchVersionController
	Users         *controllers.UserController

	JWTSecret       []byte
	UserLookup      middlewares.UserLookup
	Redis           redis.Cmdable
	SubmissionLimit int
	Log             *zap.Logger
}

func (d Deps) authenticate() gin.HandlerFunc {
	return middlewares.Authenticate(d.JWTSecret, d.UserLookup, d.Log)
}

func (d Deps) optionalAuth() gin.HandlerFunc {
	return middlewares.OptionalAuth(d.JWTSecret, d.UserLookup, d.Log)
}

func (d Deps) rateLimited() gin.HandlerFunc {
	return middlewares.SubmissionRateLimiter(d.Redis, "submissions", d.SubmissionLimit, d.Log)
}

func (d Deps) contributor() []gin.HandlerFunc {
	return []gin.HandlerFunc{d.authenticate(), middlewares.RequireRole(models.RoleContributor)}
}

// Register mounts every API route on r.
func Register(r *gin.Engine, d Deps) {
	AuthRoutes(r, d)
	PatchVersionRoutes(r, d)
	ItemRoutes(r, d)
	ResponseRoutes(r, d)
	AdminRoutes(r, d)
}
