package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/samet0demir/enerji-piyasasi/config"
	"github.com/samet0demir/enerji-piyasasi/epias"
	"github.com/samet0demir/enerji-piyasasi/handlers"
	"github.com/samet0demir/enerji-piyasasi/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.Log)
	if cfg.Log.JSON() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql db handle")
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	defer sqlDB.Close()

	if err := services.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}

	// The live feed is optional; the API serves without Redis.
	events, err := services.NewEventBus(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, live feed disabled")
	}
	defer events.Close()

	loc := cfg.Market.Location
	store := services.NewFactStore(db, loc)
	agg := services.NewAggregator(db, events)
	ledger := services.NewLedger(db, agg, events, loc)
	dash := services.NewDashboard(store, ledger, agg, loc)

	var ingestor *services.Ingestor
	if cfg.EPIAS.Enabled() {
		ingestor = services.NewIngestor(epias.NewFromConfig(cfg.EPIAS, loc), store, events, loc)
	} else {
		log.Warn().Msg("EPIAS credentials not set, /api/data/fetch disabled")
	}

	router := handlers.NewRouter(handlers.Deps{
		DB:         db,
		Store:      store,
		Ledger:     ledger,
		Aggregator: agg,
		Dashboard:  dash,
		Ingestor:   ingestor,
		Events:     events,
		Location:   loc,
		CORS:       cfg.CORS,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Str("timezone", cfg.Market.Timezone).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
