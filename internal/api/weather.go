package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammachi-ai/backend/internal/service"
)

// WeatherHandler passes provider responses through unchanged; only missing
// parameters are rejected locally.
type WeatherHandler struct {
	weather *service.WeatherService
}

func NewWeatherHandler(weather *service.WeatherService) *WeatherHandler {
	return &WeatherHandler{weather: weather}
}

func (h *WeatherHandler) RegisterRoutes(router *gin.RouterGroup) {
	weather := router.Group("/weather")
	{
		weather.GET("/current", h.Current)
		weather.GET("/forecast", h.Forecast)
	}
}

func (h *WeatherHandler) Current(c *gin.Context) {
	h.serve(c, h.weather.Current)
}

func (h *WeatherHandler) Forecast(c *gin.Context) {
	h.serve(c, h.weather.Forecast)
}

func (h *WeatherHandler) serve(c *gin.Context, fetch func(ctx context.Context, lat, lon string) *service.WeatherResult) {
	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" || lon == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon query parameters are required"})
		return
	}

	result := fetch(c.Request.Context(), lat, lon)
	if result.Demo {
		c.Header("X-Demo-Data", "true")
	}
	c.Data(result.Status, "application/json", result.Body)
}
