package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/middlewares"
	"circus-pes/models"
	"circus-pes/objectstore"
	"circus-pes/services"
)

type ItemService interface {
	List(ctx context.Context, viewer *models.User, in services.ListItemsInput) ([]models.AggregatedItem, error)
	ListForModeration(ctx context.Context, admin *models.User, in services.ListItemsInput, public *bool) ([]models.AggregatedItem, error)
	ListByUser(ctx context.Context, viewer *models.User, patchVersionID, ownerID string, cursor int) (services.Page[models.AggregatedItem], error)
	Get(ctx context.Context, viewer *models.User, id string) (models.AggregatedItem, error)
	Create(ctx context.Context, actor *models.User, in services.CreateItemInput) (models.Item, error)
	Delete(ctx context.Context, actor *models.User, id string) error
	Like(ctx context.Context, actor *models.User, id string) (models.AggregatedItem, error)
	Unlike(ctx context.Context, actor *models.User, id string) (models.AggregatedItem, error)
	SetVisibility(ctx context.Context, actor *models.User, id string, public bool) error
	Shards(ctx context.Context, viewer *models.User, in services.FacetInput) ([]models.ShardCount, error)
	Locations(ctx context.Context, viewer *models.User, in services.FacetInput) ([]string, error)
}

// ImagePipeline is shared by the item and response controllers.
type ImagePipeline interface {
	RequestUpload(ctx context.Context, actor *models.User, t services.ImageTarget, ext string) (objectstore.PresignedUpload, error)
	NotifyImageSet(ctx context.Context, actor *models.User, t services.ImageTarget, key string) error
}

type ItemController struct {
	items    ItemService
	pipeline ImagePipeline
	log      *zap.Logger
}

func NewItemController(items ItemService, pipeline ImagePipeline, log *zap.Logger) *ItemController {
	return &ItemController{items: items, pipeline: pipeline, log: log}
}

func (ctl *ItemController) listInput(c *gin.Context) (services.ListItemsInput, error) {
	sort, ok := models.ParseItemSort(c.Query("sort"))
	if !ok {
		return services.ListItemsInput{}, apperr.BadInput.New("unknown sort %q", c.Query("sort"))
	}
	if err := checkRegion(c); err != nil {
		return services.ListItemsInput{}, err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return services.ListItemsInput{}, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return services.ListItemsInput{}, err
	}
	return services.ListItemsInput{
		PatchVersionID: c.Param("id"),
		Sort:           sort,
		Region:         c.Query("region"),
		ShardID:        c.Query("shard"),
		Location:       c.Query("location"),
		Offset:         offset,
		Limit:          limit,
	}, nil
}

// List handles GET /api/patch-versions/:id/items
func (ctl *ItemController) List(c *gin.Context) {
	in, err := ctl.listInput(c)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	items, err := ctl.items.List(c.Request.Context(), middlewares.CurrentUser(c), in)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListForModeration handles GET /api/admin/patch-versions/:id/items
func (ctl *ItemController) ListForModeration(c *gin.Context) {
	in, err := ctl.listInput(c)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	public, err := queryBool(c, "public")
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	items, err := ctl.items.ListForModeration(c.Request.Context(), middlewares.CurrentUser(c), in, public)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ListByUser handles GET /api/patch-versions/:id/users/:userId/items
func (ctl *ItemController) ListByUser(c *gin.Context) {
	cursor, err := queryInt(c, "cursor")
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	page, err := ctl.items.ListByUser(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id"), c.Param("userId"), cursor)
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (ctl *ItemController) Get(c *gin.Context) {
	item, err := ctl.items.Get(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id"))
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (ctl *ItemController) Create(c *gin.Context) {
	var input struct {
		PatchVersionID string `json:"patchVersionId" binding:"required"`
		ShardID        string `json:"shardId" binding:"required,shardid"`
		Location       string `json:"location" binding:"required,max=64"`
		Description    string `json:"description" binding:"required,max=255"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	item, err := ctl.items.Create(c.Request.Context(), middlewares.CurrentUser(c), services.CreateItemInput{
		PatchVersionID: input.PatchVersionID,
		ShardID:        input.ShardID,
		Location:       input.Location,
		Description:    input.Description,
	})
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (ctl *ItemController) Delete(c *gin.Context) {
	if err := ctl.items.Delete(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id")); err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

func (ctl *ItemController) Like(c *gin.Context) {
	item, err := ctl.items.Like(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id"))
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (ctl *ItemController) Unlike(c *gin.Context) {
	item, err := ctl.items.Unlike(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id"))
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (ctl *ItemController) SetVisibility(c *gin.Context) {
	var input visibilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	if err := ctl.items.SetVisibility(c.Request.Context(), middlewares.CurrentUser(c), c.Param("id"), *input.Public); err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "public": *input.Public})
}

func (ctl *ItemController) Shards(c *gin.Context) {
	if err := checkRegion(c); err != nil {
		renderError(c, ctl.log, err)
		return
	}
	shards, err := ctl.items.Shards(c.Request.Context(), middlewares.CurrentUser(c), services.FacetInput{
		PatchVersionID: c.Param("id"),
		Region:         c.Query("region"),
	})
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, shards)
}

func (ctl *ItemController) Locations(c *gin.Context) {
	if err := checkRegion(c); err != nil {
		renderError(c, ctl.log, err)
		return
	}
	locations, err := ctl.items.Locations(c.Request.Context(), middlewares.CurrentUser(c), services.FacetInput{
		PatchVersionID: c.Param("id"),
		Region:         c.Query("region"),
		ShardID:        c.Query("shard"),
	})
	if err != nil {
		renderError(c, ctl.log, err)
		return
	}
	c.JSON(http.StatusOK, locations)
}

// RequestImageUpload handles POST /api/items/:id/image-upload
func (ctl *ItemController) RequestImageUpload(c *gin.Context) {
	requestImageUpload(c, ctl.pipeline, ctl.log, services.TargetItem)
}

// NotifyImage handles POST /api/items/:id/image
func (ctl *ItemController) NotifyImage(c *gin.Context) {
	notifyImage(c, ctl.pipeline, ctl.log, services.TargetItem)
}

func requestImageUpload(c *gin.Context, pipeline ImagePipeline, log *zap.Logger, kind services.TargetKind) {
	var input uploadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	target := services.ImageTarget{Kind: kind, ID: c.Param("id")}
	upload, err := pipeline.RequestUpload(c.Request.Context(), middlewares.CurrentUser(c), target, input.Ext)
	if err != nil {
		renderError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

func notifyImage(c *gin.Context, pipeline ImagePipeline, log *zap.Logger, kind services.TargetKind) {
	var input imageSetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	target := services.ImageTarget{Kind: kind, ID: c.Param("id")}
	if err := pipeline.NotifyImageSet(c.Request.Context(), middlewares.CurrentUser(c), target, input.Key); err != nil {
		renderError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": target.ID, "image": input.Key})
}
