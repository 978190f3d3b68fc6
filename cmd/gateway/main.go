// Gateway serves authenticated, rate-limited, cached market insights
// backed by an upstream market-data provider and Redis.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/internal/api"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/internal/config"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/internal/insights"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/auth"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/cache"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/logging"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/provider"
	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/ratelimit"
)

// Version information (set via ldflags)
var (
	Version = "dev"
	Commit  = "none"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLogger := logging.Setup(logging.DefaultConfig())
		fallbackLogger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(cfg.Logging)
	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("port", cfg.Server.Port).
		Msg("Starting insights gateway")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// A dead Redis degrades the gateway to pass-through fetching rather
	// than blocking startup; every miss will hit the provider.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr()).Msg("Redis unreachable at startup")
	} else {
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Connected to Redis")
	}
	pingCancel()

	cacheManager := cache.NewManager(redisClient, logging.NewLogger("cache"))

	providerClient, err := provider.New(provider.Config{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		Timeout:           cfg.Provider.Timeout,
		MaxAttempts:       cfg.Provider.MaxAttempts,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
	}, logging.NewLogger("provider"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create provider client")
	}

	service := insights.NewService(cacheManager, providerClient, cfg.Cache.TTL, logging.NewLogger("insights"))
	gate := auth.NewGate(cfg.Auth.APIToken, logging.NewLogger("auth"))
	limiter := ratelimit.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logging.NewLogger("ratelimit"))
	handler := api.NewHandler(service, cacheManager, logging.NewLogger("api"))

	server := api.NewServer(api.ServerConfig{
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.Window,
	}, handler, gate, limiter, logging.NewLogger("http"))

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()
	logger.Info().Str("port", cfg.Server.Port).Msg("Gateway is ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drop cached insights so a restart never serves entries from a
	// previous credential or provider configuration.
	if cleared, err := cacheManager.Clear(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to clear cache on shutdown")
	} else {
		logger.Info().Int("keys", cleared).Msg("Cache cleared")
	}

	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close Redis connection")
	}

	logger.Info().Msg("Gateway shutdown complete")
}
