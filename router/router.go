package router

import (
	"log"

	"zapcrm/config"
	"zapcrm/controllers"
	"zapcrm/middleware"

	"github.com/gin-gonic/gin"
)

// Initialize wires all routes and middlewares. The two webhook surfaces are
// the whole public API of this core: the provider pushes events on one, the
// workflow engine answers back on the other.
func Initialize(r *gin.Engine, cfg config.Configuration) {
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestIDMiddleware())

	r.NoMethod(func(c *gin.Context) {
		controllers.RespondError(c, "method not allowed", 405)
	})

	api := r.Group("/api")

	api.GET("/health", Logger(), controllers.Health)

	// Provider (Evolution API) -> core
	api.POST("/webhook/evolution", Logger(), controllers.EvolutionWebhook(cfg))

	// Workflow engine (n8n) -> core
	api.POST("/webhook/engine", Logger(), controllers.EngineWebhook(cfg))

	log.Printf("Routes initialized")
}
