package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"archie-core-integrations-layer/internal/application"
	"archie-core-integrations-layer/internal/application/webhook_handlers"
	"archie-core-integrations-layer/internal/config"
	"archie-core-integrations-layer/internal/infrastructure/api"
	"archie-core-integrations-layer/internal/infrastructure/auth"
	"archie-core-integrations-layer/internal/infrastructure/cache"
	"archie-core-integrations-layer/internal/infrastructure/encryption"
	"archie-core-integrations-layer/internal/infrastructure/oauth"
	"archie-core-integrations-layer/internal/infrastructure/pubsub"
	"archie-core-integrations-layer/internal/infrastructure/repository"
	shopifyinfra "archie-core-integrations-layer/internal/infrastructure/shopify"
	"archie-core-integrations-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	securitymiddleware "archie-core-integrations-layer/internal/infrastructure/middleware"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if !config.LoadDotEnv() {
		logger.Warn().Msg(".env file not found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err == nil {
		err = client.Ping(connectCtx, nil)
	}
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDatabase)

	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	connectionRepo := repository.NewMongoConnectionRepository(db, encryptionService, logger)
	if err := connectionRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create integration indexes")
	}

	stateStore := newStateStore(ctx, cfg, logger)

	// Connection events feed the SSE stream and the transition metrics
	eventHub := pubsub.NewConnectionPubSub(logger)

	registry := application.NewIntegrationRegistry(connectionRepo, eventHub, logger)
	selector := application.NewSubAccountSelector(registry, logger)

	// Rate-limited Shopify Admin GraphQL client
	retryConfig := shopifyinfra.DefaultRetryConfig()
	retryConfig.SafetyMargin = cfg.ThrottleSafetyMargin
	retryConfig.MaxWait = cfg.ThrottleMaxWait
	retryConfig.TransportRetryBackoff = cfg.TransportRetryBackoff
	transport := shopifyinfra.NewHTTPTransport(&http.Client{Timeout: 30 * time.Second}, cfg.ShopifyAPIVersion)
	graphQLClient := shopifyinfra.NewGraphQLClient(transport, retryConfig, logger)
	pixelService := shopifyinfra.NewWebPixelService(graphQLClient)

	integrationService := application.NewIntegrationService(
		registry,
		selector,
		pixelService,
		stateStore,
		logger,
		cfg.OAuthRedirectURI(),
		cfg.OAuthStateTTL,
	)

	var (
		shopifyProvider *shopifyinfra.OAuthProvider
		webhookVerifier api.RequestVerifier
	)
	if cfg.ShopifyEnabled() {
		shopifyProvider = shopifyinfra.NewOAuthProvider(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.ShopifyScopes, true, logger)
		integrationService.RegisterProvider(shopifyProvider)
		webhookVerifier = shopifyinfra.NewWebhookVerifier(cfg.ShopifyAPISecret)
	}
	if cfg.FacebookClientID != "" {
		integrationService.RegisterProvider(oauth.NewFacebookProvider(cfg.FacebookClientID, cfg.FacebookClientSecret, logger))
		integrationService.RegisterProvider(oauth.NewInstagramProvider(cfg.FacebookClientID, cfg.FacebookClientSecret, logger))
		integrationService.RegisterDiscoverer(oauth.NewInstagramDiscoverer("", nil, logger))
	}
	if cfg.GoogleClientID != "" {
		integrationService.RegisterProvider(oauth.NewGoogleAdsProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, logger))
		integrationService.RegisterDiscoverer(oauth.NewGoogleAdsDiscoverer("", cfg.GoogleAdsDevToken, nil, logger))
	}

	webhookLog := repository.NewMongoWebhookLogRepository(db)
	if err := webhookLog.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create webhook indexes")
	}

	webhookService := application.NewWebhookService(webhookLog, logger,
		webhook_handlers.NewAppUninstalledHandler(logger, registry),
		webhook_handlers.NewComplianceHandler(logger, registry),
	)

	var callbackVerifier api.CallbackVerifier
	if shopifyProvider != nil {
		callbackVerifier = shopifyProvider
	}
	handler := api.NewHandler(integrationService, webhookService, webhookVerifier, callbackVerifier, eventHub, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securitymiddleware.SecurityHeadersMiddleware())
	r.Use(securitymiddleware.AuditLoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.APIKeyHeader},
		AllowCredentials: false,
	}))

	guard := securitymiddleware.NewAuthGuard(
		auth.NewAPIKeyVerifier(cfg.APIKey),
		auth.NewSessionVerifier(cfg.SessionSigningSecret),
		logger,
	)
	routes := securitymiddleware.NewGuardedRouter(r, guard, securitymiddleware.NewPolicyTable())
	handler.RegisterRoutes(routes)

	for _, entry := range routes.Table().Unauthenticated() {
		logger.Info().
			Str("method", entry.Method).
			Str("route", entry.Pattern).
			Bool("skipApiKeyAuth", entry.Policy.SkipAPIKeyAuth).
			Bool("skipSessionAuth", entry.Policy.SkipSessionAuth).
			Msg("Route served without credential checks")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down API server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// newStateStore returns the Redis-backed OAuth state store, or an in-process
// one when Redis is unreachable. The in-process store only works for a single
// replica.
func newStateStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ports.AuthorizationStateStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().
			Err(err).
			Str("addr", cfg.RedisAddr).
			Msg("Redis unavailable, keeping OAuth state in memory")
		rdb.Close()
		return cache.NewMemoryStateStore()
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis for OAuth state")
	return cache.NewRedisStateStore(rdb, logger)
}
