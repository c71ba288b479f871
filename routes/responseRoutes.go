package routes

import "github.com/gin-gonic/gin"

func ResponseRoutes(r *gin.Engine, d Deps) {
	responses := r.Group("/api/responses")
	{
		responses.DELETE("/:id", append(d.contributor(), d.Responses.Delete)...)
		responses.POST("/:id/image-upload", append(d.contributor(), d.Responses.RequestImageUpload)...)
		responses.POST("/:id/image", append(d.contributor(), d.Responses.NotifyImage)...)
	}
}
