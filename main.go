// main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"event-ticket/cmd"
	"event-ticket/internal/credential"
	"event-ticket/internal/data/repository"
	"event-ticket/internal/dto/message"
	"event-ticket/internal/live"
	"event-ticket/internal/usecase"
	"event-ticket/internal/wire"
	"event-ticket/pkg/broker"
	"event-ticket/pkg/cache"
	"event-ticket/pkg/clock"
	"event-ticket/pkg/database"
	"event-ticket/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	if err := run(config, logger); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Application stopped")
}

// run owns every resource it opens, so an early return still closes them.
func run(config *utils.Config, logger *zap.Logger) error {
	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	repos := repository.NewRepository(db, logger)

	// Seat map cache is optional; reads fall through to postgres without it.
	var seatCache cache.SeatMapCache = cache.Noop{}
	rdb, err := cache.NewRedisClient(config.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, seat map cache disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		seatCache = cache.NewSeatMapCache(rdb, config.Redis.CacheTTL, logger)
	}

	publisher := broker.NewPublisher(config.Broker, logger)
	defer publisher.Close()

	issuer, err := credential.NewMACIssuer(config.Credential.Secret)
	if err != nil {
		return fmt.Errorf("credential issuer: %w", err)
	}

	hub := live.NewHub(32, logger)

	deps := usecase.Deps{
		Publisher: publisher,
		Feed:      hub,
		Cache:     seatCache,
		Issuer:    issuer,
		Opener:    issuer,
		Clock:     clock.NewSystem(),
	}

	app := wire.Wiring(repos, deps, hub, config, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return cmd.APIServer(ctx, app.Router, config.App.Port, logger, hub.Close)
	})

	g.Go(func() error {
		consumer := broker.NewConsumer(config.Broker, message.TopicPaymentValidated, logger)
		return consumer.Run(ctx, app.Payments.Handle)
	})

	g.Go(func() error {
		return app.Sweeper.Run(ctx)
	})

	return g.Wait()
}
