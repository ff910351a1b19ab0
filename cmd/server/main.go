package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yRomulo/AstroCall/internal/ai"
	"github.com/yRomulo/AstroCall/internal/config"
	"github.com/yRomulo/AstroCall/internal/database"
	"github.com/yRomulo/AstroCall/internal/db"
	"github.com/yRomulo/AstroCall/internal/diag"
	"github.com/yRomulo/AstroCall/internal/feed"
	httpserver "github.com/yRomulo/AstroCall/internal/http"
	"github.com/yRomulo/AstroCall/internal/jobs"
	"github.com/yRomulo/AstroCall/internal/lifecycle"
	"github.com/yRomulo/AstroCall/internal/livekit"
	"github.com/yRomulo/AstroCall/internal/presence"
	"github.com/yRomulo/AstroCall/internal/repository"
)

var errLiveKitNotConfigured = errors.New("livekit credentials not configured")

// roomTokens adapts the credential minting to the lifecycle controller.
type roomTokens struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func (t roomTokens) RoomToken(_ context.Context, room, identity string) (string, error) {
	if t.apiKey == "" || t.apiSecret == "" {
		return "", errLiveKitNotConfigured
	}
	return livekit.NewRoomToken(t.apiKey, t.apiSecret, room, identity, t.ttl)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable, presence falls back to the database", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	store := repository.NewStore(pool)
	reporter := diag.NewLogReporter(logger.Named("diag"))
	controller := lifecycle.NewController(roomTokens{
		apiKey:    cfg.LiveKitAPIKey,
		apiSecret: cfg.LiveKitAPISecret,
		ttl:       cfg.CallTokenTTL,
	}, store, reporter)
	tracker := presence.NewTracker(store, redisClient, cfg.PresenceTTL)
	flows := ai.NewFlows(ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout))
	hub := feed.NewHub(logger.Named("feed"))

	jobs.StartSessionCloseJob(ctx, cfg, store, logger.Named("jobs"))

	srv := httpserver.NewServer(cfg, store, controller, tracker, flows, hub, reporter)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}
}
