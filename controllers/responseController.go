package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"circus-pes/middlewares"
	"circus-pes/models"
	"circus-pes/services"
)

type ResponseService interface {
	ListForItem(ctx context.Context, viewer *models.User, itemID string, cursor int) (services.Page[models.AggregatedResponse], error)
	ListForModeration(ctx context.Context, public *bool, cursor int) (services.Page[models.AggregatedResponse], error)
	Create(ctx context.Context, actor *models.User, in services.CreateResponseInput) (models.Response, error)
	Delete(ctx context.Context, actor *models.User, id string) error
	SetVisibility(ctx context.Context, actor *models.User, id string, public bool) error
}

type ResponseController struct {
	responses ResponseService
	pipeline  ImagePipeline
	log       *zap.Logger
}

func NewResponseController(responses ResponseService, pipeline ImagePipeline, log *zap.Logger) *ResponseController {
	return &ResponseController{responses: responses, pipeline: pipeline, log: log}
}

// ListForItem handles GET /api/items/:id/responses
func (ctl *ResponseController) ListForItem(c *gin.Context) {
	cursor, err := queryInt(c, "cursor")
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	page, err := ctl.responses.ListForItem(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id"), cursor)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListForModeration handles GET /api/admin/responses
func (ctl *ResponseController) ListForModeration(c *gin.Context) {
	cursor, err := queryInt(c, "cursor")
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	public, err := queryBool(c, "public")
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	page, err := ctl.responses.ListForModeration(c.Request.Context(), public, cursor)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Create handles POST /api/items/:id/responses
func (ctl *ResponseController) Create(c *gin.Context) {
	var input struct {
		HasFound *bool  `json:"hasFound" binding:"required"`
		Comment  string `json:"comment" binding:"required,max=255"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := ctl.responses.Create(c.Request.Context(), middlewares.CurrentUser(c), services.CreateResponseInput{
		ItemID:   c.Param("id"),
		HasFound: *input.HasFound,
		Comment:  input.Comment,
	})
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (ctl *ResponseController) Delete(c *gin.Context) {
	if err := ctl.responses.Delete(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id")); err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Response deleted successfully"})
}

func (ctl *ResponseController) SetVisibility(c *gin.Context) {
	var input visibilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if err := ctl.responses.SetVisibility(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id"), *input.Public); err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "public": *input.Public})
}

// RequestImageUpload handles POST /api/responses/:id/image-upload
func (ctl *ResponseController) RequestImageUpload(c *gin.Context) {
	requestImageUpload(c, ctl.pipeline, ctl.log, services.TargetResponse)
}

// NotifyImage handles POST /api/responses/:id/image
func (ctl *ResponseController) NotifyImage(c *gin.Context) {
	notifyImage(c, ctl.pipeline, ctl.log, services.TargetResponse)
}
