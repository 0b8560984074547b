package main // Entry point package

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/logger"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-raffle/internal/config"
	"github.com/iliyamo/event-raffle/internal/database"
	"github.com/iliyamo/event-raffle/internal/handler"
	"github.com/iliyamo/event-raffle/internal/metrics"
	"github.com/iliyamo/event-raffle/internal/queue"
	"github.com/iliyamo/event-raffle/internal/raffle"
	"github.com/iliyamo/event-raffle/internal/repository"
	"github.com/iliyamo/event-raffle/internal/router"
	"github.com/iliyamo/event-raffle/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config

	// Logs always go to logs/raffle.log; LOG_VERBOSE echoes them to the console.
	logDir := filepath.Join(".", "logs")
	var logFile io.Writer = io.Discard
	if err := os.MkdirAll(logDir, 0o755); err == nil {
		if f, err := os.OpenFile(filepath.Join(logDir, "raffle.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			defer f.Close()
			logFile = f
		}
	}
	defer logger.Init("event-raffle", cfg.LogVerbose || logFile == io.Discard, false, logFile).Close()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
	}

	store := repository.NewMySQLStore(db)
	rdb := config.NewRedisClient() // nil when Redis is unreachable
	metrics.Register()

	publisher := service.NewWinnerPublisher(cfg.RabbitMQURL, cfg.RabbitMQDialTimeout)
	svc := raffle.NewService(store, cfg.RaffleOptions(), raffle.NewRandomSampler(), publisher)

	// The consumer writes every published winner to logs/winners.log.
	go func() {
		if err := queue.StartWinnerConsumer(ctx, cfg.RabbitMQURL, logDir); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("winner-consumer: %v", err)
		}
	}()

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	router.RegisterRoutes(e, store)
	router.RegisterRaffle(e, handler.NewRaffleHandler(svc), cfg.JWTSecret, router.Guards{
		Redis:      rdb,
		DrawLimit:  config.LoadDrawLimitConfig(),
		StatsCache: config.LoadStatsCacheConfig(),
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
