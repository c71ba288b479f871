package routes

import "github.com/gin-gonic/gin"

// ItemRoutes sets up the item and response-on-item routes
func ItemRoutes(r *gin.Engine, d Deps) {
	items := r.Group("/api/items")
	{
		items.POST("", append(d.contributor(), d.rateLimited(), d.Items.Create)...)
		items.GET("/:id", d.optionalAuth(), d.Items.Get)
		items.DELETE("/:id", append(d.contributor(), d.Items.Delete)...)
		items.POST("/:id/like", d.authenticate(), d.Items.Like)
		items.DELETE("/:id/like", d.authenticate(), d.Items.Unlike)
		items.POST("/:id/image-upload", append(d.contributor(), d.Items.RequestImageUpload)...)
		items.POST("/:id/image", append(d.contributor(), d.Items.NotifyImage)...)

		items.GET("/:id/responses", d.optionalAuth(), d.Responses.ListForItem)
		items.POST("/:id/responses", append(d.contributor(), d.rateLimited(), d.Responses.Create)...)
	}
}
