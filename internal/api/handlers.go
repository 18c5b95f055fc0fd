package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammachi-ai/backend/config"
)

// HealthCheck reports process liveness and which integrations are enabled,
// so a misconfigured deploy is diagnosable from the outside.
func HealthCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Ammachi AI API is running",
			"features": gin.H{
				"auth":    cfg.AuthProviderEnabled,
				"market":  cfg.MarketAPIKey != "",
				"weather": cfg.WeatherAPIKey != "",
				"disease": cfg.DiseaseAPIKey != "",
				"chat":    cfg.AIAPIKey != "",
			},
		})
	}
}
