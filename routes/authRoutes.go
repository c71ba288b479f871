package routes

import "github.com/gin-gonic/gin"

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, d Deps) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/sync", d.Auth.Sync)
		auth.GET("/me", d.authenticate(), d.Auth.Me)
	}
}
