package httpapi

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Health)
	r.POST("/dispatch", h.RequireAdmin, h.Dispatch)

	users := r.Group("/users/:user_id")
	{
		users.GET("/plantings", h.ListPlantings)
		users.POST("/plantings", h.CreatePlanting)
		users.PUT("/plantings/:planting_id", h.UpdatePlanting)
		users.DELETE("/plantings/:planting_id", h.DeletePlanting)
		users.PUT("/notifications", h.SetNotifications)
		users.GET("/digest", h.PreviewDigest)
	}
	return r
}
