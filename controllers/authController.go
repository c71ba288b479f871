package controllers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"circus-pes/middlewares"
	"circus-pes/models"
	authUtils "circus-pes/utils"
)

const syncSecretHeader = "X-Auth-Sync-Secret"

type AuthController struct {
	users      UserService
	jwtSecret  []byte
	jwtTTL     time.Duration
	syncSecret []byte
	log        *zap.Logger
}

func NewAuthController(users UserService, jwtSecret, syncSecret string, jwtTTL time.Duration, log *zap.Logger) *AuthController {
	return &AuthController{
		users:      users,
		jwtSecret:  []byte(jwtSecret),
		jwtTTL:     jwtTTL,
		syncSecret: []byte(syncSecret),
		log:        log,
	}
}

// Sync handles POST /api/auth/sync. The front-end posts the identity
// provider profile after each sign-in and receives the API token.
func (ctl *AuthController) Sync(c *gin.Context) {
	provided := []byte(c.GetHeader(syncSecretHeader))
	if len(ctl.syncSecret) == 0 || subtle.ConstantTimeCompare(provided, ctl.syncSecret) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid sync secret"})
		return
	}

	var input struct {
		ID            string  `json:"id" binding:"required"`
		Name          string  `json:"name" binding:"required,max=64"`
		Image         *string `json:"image"`
		Discriminator *string `json:"discriminator"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := ctl.users.Sync(c.Request.Context(), models.Profile{
		ID:            input.ID,
		Name:          input.Name,
		Image:         input.Image,
		Discriminator: input.Discriminator,
	})
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}

	token, err := authUtils.GenerateToken(user.ID, ctl.jwtSecret, ctl.jwtTTL)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me handles GET /api/auth/me
func (ctl *AuthController) Me(c *gin.Context) {
	user := middlewares.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	c.JSON(http.StatusOK, user)
}
