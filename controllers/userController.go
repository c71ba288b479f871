package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/audit"
	"circus-pes/middlewares"
	"circus-pes/models"
)

const auditHistoryLimit = 50

type UserService interface {
	Sync(ctx context.Context, p models.Profile) (models.User, error)
	Get(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context, actor *models.User) ([]models.User, error)
	UpdateRole(ctx context.Context, actor *models.User, id string, role models.Role) error
	History(ctx context.Context, actor *models.User, entityID string, limit int64) ([]audit.Event, error)
}

type UserController struct {
	users UserService
	log   *zap.Logger
}

func NewUserController(users UserService, log *zap.Logger) *UserController {
	return &UserController{users: users, log: log}
}

func (ctl *UserController) List(c *gin.Context) {
	users, err := ctl.users.List(c.Request.Context(), middlewares.CurrentUser(c))
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// UpdateRole handles PUT /api/admin/users/:id/role
func (ctl *UserController) UpdateRole(c *gin.Context) {
	var input struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	role, ok := models.ParseRole(input.Role)
	if !ok {
		renderError(c, ctl.log, apperr.BadInput.New("unknown role %q", input.Role))
		return
	}
	if err := ctl.users.UpdateRole(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id"), role); err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "role": role})
}

// AuditHistory handles GET /api/admin/audit/:entityId
func (ctl *UserController) AuditHistory(c *gin.Context) {
	events, err := ctl.users.History(c.Request.Context(), middlewares.CurrentUser(c), c.Param("entityId"), auditHistoryLimit)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
