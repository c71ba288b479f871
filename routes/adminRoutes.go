package routes

import (
	"github.com/gin-gonic/gin"

	"circus-pes/middlewares"
	"circus-pes/models"
)

// AdminRoutes sets up the moderation routes; every route requires an admin.
func AdminRoutes(r *gin.Engine, d Deps) {
	admin := r.Group("/api/admin", d.authenticate(), middlewares.RequireRole(models.RoleAdmin))
	{
		admin.GET("/patch-versions", d.PatchVersions.ListAll)
		admin.POST("/patch-versions", d.PatchVersions.Create)
		admin.PUT("/patch-versions/:id/visibility", d.PatchVersions.SetVisibility)
		admin.GET("/patch-versions/:id/items", d.Items.ListForModeration)

		admin.PUT("/items/:id/visibility", d.Items.SetVisibility)
		admin.PUT("/responses/:id/visibility", d.Responses.SetVisibility)
		admin.GET("/responses", d.Responses.ListForModeration)

		admin.GET("/users", d.Users.List)
		admin.PUT("/users/:id/role", d.Users.UpdateRole)
		admin.GET("/audit/:entityId", d.Users.AuditHistory)
	}
}
