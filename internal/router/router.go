package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ammachi-ai/backend/config"
	"github.com/ammachi-ai/backend/internal/api"
	"github.com/ammachi-ai/backend/internal/middleware"
	"github.com/ammachi-ai/backend/internal/service"
)

// Setup configures the application routes. redisClient may be nil; rate
// limiting is then skipped entirely.
func Setup(
	cfg *config.Config,
	reconciler *service.Reconciler,
	market *service.MarketService,
	weather *service.WeatherService,
	disease *service.DiseaseService,
	chat *service.ChatService,
	redisClient *redis.Client,
) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	router.GET("/health", api.HealthCheck(cfg))

	var chatLimiter, scanLimiter *middleware.RateLimiter
	if redisClient != nil {
		chatLimiter = middleware.NewChatRateLimiter(redisClient)
		scanLimiter = middleware.NewScanRateLimiter(redisClient)
	}

	authHandler := api.NewAuthHandler(reconciler)
	marketHandler := api.NewMarketHandler(market)
	weatherHandler := api.NewWeatherHandler(weather)
	diseaseHandler := api.NewDiseaseHandler(disease, reconciler)
	chatHandler := api.NewChatHandler(chat, reconciler)

	root := router.Group("")
	authHandler.RegisterRoutes(root)
	marketHandler.RegisterRoutes(root)
	weatherHandler.RegisterRoutes(root)

	// Paid upstreams get optional auth (activity counters) plus rate limits.
	metered := router.Group("")
	metered.Use(middleware.OptionalAuth(reconciler))
	if scanLimiter != nil {
		scanGroup := metered.Group("")
		scanGroup.Use(scanLimiter.Middleware())
		diseaseHandler.RegisterRoutes(scanGroup)
	} else {
		diseaseHandler.RegisterRoutes(metered)
	}
	if chatLimiter != nil {
		chatGroup := metered.Group("")
		chatGroup.Use(chatLimiter.Middleware())
		chatHandler.RegisterRoutes(chatGroup)
	} else {
		chatHandler.RegisterRoutes(metered)
	}

	return router
}
