package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"meal-planner-backend/internal/auth"
	"meal-planner-backend/internal/config"
	"meal-planner-backend/internal/database"
	"meal-planner-backend/internal/mealplan"
	"meal-planner-backend/internal/server"
	"meal-planner-backend/internal/spoonacular"
	"meal-planner-backend/internal/user"
)

func main() {
	// A .env file is a development convenience; in production everything
	// comes from real environment variables.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatalw("failed to initialize database", "error", err)
	}
	defer db.Close()

	var source spoonacular.API = spoonacular.NewClient(cfg, logger)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		source = spoonacular.NewCachedClient(source, rdb, logger)
		logger.Infow("recipe cache enabled", "redis", cfg.RedisAddr)
	}

	srv := server.New(
		cfg.HTTPAddr,
		user.NewService(db.SQL),
		mealplan.NewService(db.SQL, source, logger),
		auth.NewManager(db.SQL, cfg.JWTSecret),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatalw("server exited", "error", err)
	}
	logger.Infow("shutdown complete")
}
