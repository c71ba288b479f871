package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"circus-pes/middlewares"
	"circus-pes/models"
)

type PatchVersionService interface {
	ListVisible(ctx context.Context) ([]models.PatchVersion, error)
	ListAll(ctx context.Context) ([]models.PatchVersion, error)
	Create(ctx context.Context, actor *models.User, name string) (models.PatchVersion, error)
	SetVisibility(ctx context.Context, actor *models.User, id string, visible bool) error
	Categories(ctx context.Context) ([]models.Category, error)
}

type PatchVersionController struct {
	versions PatchVersionService
	log      *zap.Logger
}

func NewPatchVersionController(versions PatchVersionService, log *zap.Logger) *PatchVersionController {
	return &PatchVersionController{versions: versions, log: log}
}

func (ctl *PatchVersionController) ListVisible(c *gin.Context) {
	versions, err := ctl.versions.ListVisible(c.Request.Context())
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (ctl *PatchVersionController) ListAll(c *gin.Context) {
	versions, err := ctl.versions.ListAll(c.Request.Context())
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (ctl *PatchVersionController) Create(c *gin.Context) {
	var input struct {
		Name string `json:"name" binding:"required,max=32"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	pv, err := ctl.versions.Create(c.Request.Context(), middlewares.CurrentUser(c), input.Name)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusCreated, pv)
}

func (ctl *PatchVersionController) SetVisibility(c *gin.Context) {
	var input struct {
		Visible *bool `json:"visible" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if err := ctl.versions.SetVisibility(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id"), *input.Visible); err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "visible": *input.Visible})
}

func (ctl *PatchVersionController) Categories(c *gin.Context) {
	categories, err := ctl.versions.Categories(c.Request.Context())
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}
