package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammachi-ai/backend/internal/service"
)

// MarketHandler serves commodity price lookups. Responses are always 200;
// upstream trouble is absorbed by the demo dataset.
type MarketHandler struct {
	market *service.MarketService
}

func NewMarketHandler(market *service.MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

func (h *MarketHandler) RegisterRoutes(router *gin.RouterGroup) {
	market := router.Group("/market")
	{
		market.GET("/prices", h.Prices)
		market.GET("/commodities", h.Commodities)
		market.GET("/markets", h.Markets)
	}
}

func (h *MarketHandler) Prices(c *gin.Context) {
	result := h.market.Prices(
		c.Request.Context(),
		c.Query("state"),
		c.Query("market"),
		c.Query("commodity"),
	)

	resp := gin.H{
		"success": true,
		"count":   result.Count,
		"data":    result.Data,
	}
	if result.Demo {
		resp["demo"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MarketHandler) Commodities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.market.Commodities()})
}

func (h *MarketHandler) Markets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.market.Markets()})
}
