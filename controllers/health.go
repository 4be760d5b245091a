package controllers

import (
	"context"
	"net/http"

	"vitrine/logging"

	"github.com/gin-gonic/gin"
)

// Health responde 200 quando o banco responde ao ping, 503 caso contrário.
func Health(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				logging.FromContext(c.Request.Context()).Warn().Err(err).Msg("health: database ping failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "status": "unavailable", "database": "down"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok", "database": "up"})
	}
}
