package controllers

import (
	"zapcrm/middleware"

	"github.com/gin-gonic/gin"
)

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg, "requestId": middleware.RequestID(c)})
}

func RespondSuccess(c *gin.Context, payload gin.H) {
	RespondWith(c, 200, payload)
}

func RespondWith(c *gin.Context, code int, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["requestId"] = middleware.RequestID(c)
	c.JSON(code, payload)
}

// GET /api/health
func Health(c *gin.Context) {
	RespondSuccess(c, gin.H{"status": "ok"})
}
