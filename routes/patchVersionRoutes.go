package routes

import "github.com/gin-gonic/gin"

func PatchVersionRoutes(r *gin.Engine, d Deps) {
	r.GET("/api/categories", d.PatchVersions.Categories)

	versions := r.Group("/api/patch-versions")
	{
		versions.GET("", d.PatchVersions.ListVisible)
		versions.GET("/:id/items", d.optionalAuth(), d.Items.List)
		versions.GET("/:id/shards", d.optionalAuth(), d.Items.Shards)
		versions.GET("/:id/locations", d.optionalAuth(), d.Items.Locations)
		versions.GET("/:id/users/:userId/items", d.optionalAuth(), d.Items.ListByUser)
	}
}
