package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/ammachi-ai/backend/config"
	"github.com/ammachi-ai/backend/internal/database"
	"github.com/ammachi-ai/backend/internal/identity"
	"github.com/ammachi-ai/backend/internal/router"
	"github.com/ammachi-ai/backend/internal/service"
	"github.com/ammachi-ai/backend/internal/store"
)

// Server owns the HTTP listener and the wired application graph.
type Server struct {
	cfg  *config.Config
	http *http.Server
}

// New wires the full application: storage, auth provider, services, routes.
// Feature keys that are missing disable their feature; only a configured
// database that cannot be reached is a startup error.
func New(cfg *config.Config) (*Server, error) {
	var userStore store.UserStore
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		userStore = store.NewPostgresStore(db)
	} else {
		log.Printf("[Server] using in-memory user store, records will not survive a restart")
		userStore = store.NewMemoryStore()
	}

	var provider identity.Provider
	if cfg.AuthProviderEnabled {
		verifier := identity.NewTokenVerifier(cfg.AuthProjectID, identity.NewCertKeySource(cfg.AuthCertsURL))
		provider = identity.NewHTTPProvider(cfg.AuthAPIKey, cfg.AuthBaseURL, verifier)
	} else {
		log.Printf("[Server] auth provider not configured, auth endpoints will return 503")
		provider = identity.Disabled{}
	}

	// Rate limiting and chat history degrade gracefully without Redis.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		client, err := database.NewRedisClient(cfg)
		if err != nil {
			log.Printf("[Server] continuing without Redis: %v", err)
		} else {
			redisClient = client
		}
	}

	reconciler := service.NewReconciler(userStore, provider)
	market := service.NewMarketService(cfg.MarketAPIKey, cfg.MarketBaseURL)
	weather := service.NewWeatherService(cfg.WeatherAPIKey, cfg.WeatherBaseURL)
	disease := service.NewDiseaseService(cfg.DiseaseAPIKey, cfg.DiseaseBaseURL)
	chat := service.NewChatService(cfg.AIAPIKey, cfg.AIBaseURL, redisClient)

	engine := router.Setup(cfg, reconciler, market, weather, disease, chat, redisClient)

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
			Handler: engine,
		},
	}, nil
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[Server] listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
