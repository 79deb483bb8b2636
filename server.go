package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"vibelink/auth"
	"vibelink/config"
	"vibelink/events"
	"vibelink/handlers"
	"vibelink/middleware"
	"vibelink/migrations"
	"vibelink/ratelimit"
	"vibelink/repository"
	"vibelink/routes"
	"vibelink/services"
)

const (
	shutdownTimeout    = 10 * time.Second
	roomJanitorEvery   = time.Minute
	readHeaderTimeout  = 10 * time.Second
	redisStartupPingIn = 5 * time.Second
)

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, err := openRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	publisher := openPublisher(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close event publisher", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := services.NewHub(logger)
	go hub.Run(runCtx)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	board := services.NewLeaderboardService(store, rdb, logger)
	matches := services.NewMatchService(store, hub, board, publisher, cfg.MatchMinScore, logger)
	games := services.NewGameService(store, hub, services.NewStateStore(rdb, logger), matches, publisher, services.GameConfig{
		TotalRounds:    cfg.GameTotalRounds,
		RoundDuration:  cfg.GameRoundDuration,
		ReviewDuration: cfg.GameReviewDuration,
	}, logger)
	rooms := services.NewRoomService(store, hub, publisher, logger)
	rooms.SetSessionHook(games)
	users := services.NewUserService(store, rooms, logger)
	authService := services.NewAuthService(store, tokens, logger)

	rooms.RegisterHandlers(hub)
	games.RegisterHandlers(hub)

	if err := games.Resume(runCtx); err != nil {
		return err
	}
	if cfg.RoomIdleTimeout > 0 {
		go rooms.RunJanitor(runCtx, roomJanitorEvery, cfg.RoomIdleTimeout)
	}

	limiter := newLimiter(runCtx, cfg, rdb)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	origins := middleware.NewOriginPolicy(cfg.CORSOrigin)
	routes.SetupRoutes(router, routes.Handlers{
		Auth:        handlers.NewAuthHandler(authService),
		Users:       handlers.NewUserHandler(users),
		Rooms:       handlers.NewRoomHandler(rooms, hub, cfg.AppURL),
		Games:       handlers.NewGameHandler(games),
		Matches:     handlers.NewMatchHandler(matches),
		Leaderboard: handlers.NewLeaderboardHandler(board),
		Health:      handlers.NewHealthHandler(cfg.Environment),
		WS:          handlers.NewWSHandler(hub, tokens, origins, logger),
	}, routes.Options{
		Tokens:     tokens,
		Origins:    origins,
		Limiter:    limiter,
		Production: cfg.IsProduction(),
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "environment", cfg.Environment, "db_driver", cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	cancel()
	<-hub.Done()
	games.Wait()
	if m, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		m.Close()
		<-m.Done()
	}
	logger.Info("shutdown complete")
	return nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (repository.Store, func(), error) {
	if cfg.DBDriver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	if cfg.AutoMigrate {
		m, err := migrations.New(cfg.DatabaseURL(), logger)
		if err != nil {
			return nil, nil, err
		}
		err = m.Up()
		if cerr := m.Close(); cerr != nil {
			logger.Warn("close migrator", "error", cerr)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return repository.NewGormStore(db), func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("close database", "error", err)
		}
	}, nil
}

// openRedis returns nil when redis is disabled or unreachable, unless the
// rate limiter depends on it.
func openRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.RedisEnabled {
		return nil, nil
	}
	rdb := config.InitRedis(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, redisStartupPingIn)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		if cfg.RateLimitStore == "redis" {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Warn("redis unavailable, continuing without cache", "error", err)
		return nil, nil
	}
	return rdb, nil
}

func openPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		return events.NopPublisher{}
	}
	p, err := events.NewNATSPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Warn("nats unavailable, domain events disabled", "error", err)
		return events.NopPublisher{}
	}
	return p
}

func newLimiter(ctx context.Context, cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	limits := ratelimit.Config{Window: cfg.RateLimitWindow, MaxRequests: cfg.RateLimitMaxRequests}
	if cfg.RateLimitStore == "redis" && rdb != nil {
		return ratelimit.NewRedisLimiter(rdb, limits)
	}
	m := ratelimit.NewMemoryLimiter(limits)
	m.Start(ctx)
	return m
}
