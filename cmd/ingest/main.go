// Command ingest pulls market facts from EPIAS for a date range and, with
// -resolve, fills in the actual prices of the forecasts that range covers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/samet0demir/enerji-piyasasi/config"
	"github.com/samet0demir/enerji-piyasasi/epias"
	"github.com/samet0demir/enerji-piyasasi/models"
	"github.com/samet0demir/enerji-piyasasi/services"
)

type output struct {
	Ingest     *services.IngestReport `json:"ingest"`
	Resolved   []models.ResolveResult `json:"resolved,omitempty"`
	Recomputed int                    `json:"recomputed,omitempty"`
}

func main() {
	yesterday := time.Now().AddDate(0, 0, -1).Format(models.DateLayout)
	start := flag.String("start", yesterday, "first market day, YYYY-MM-DD")
	end := flag.String("end", yesterday, "last market day, YYYY-MM-DD")
	kinds := flag.String("kinds", "", "comma separated fact kinds (price,generation,consumption); empty for all")
	resolve := flag.Bool("resolve", false, "resolve open forecasts of the range from stored prices")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.Log)
	if !cfg.EPIAS.Enabled() {
		log.Fatal().Msg("EPIAS_USERNAME and EPIAS_PASSWORD must be set")
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := services.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}

	events, err := services.NewEventBus(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, events will not be published")
	}
	defer events.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := cfg.Market.Location
	store := services.NewFactStore(db, loc)
	ingestor := services.NewIngestor(epias.NewFromConfig(cfg.EPIAS, loc), store, events, loc)

	req := services.IngestRequest{StartDate: *start, EndDate: *end}
	for _, k := range strings.Split(*kinds, ",") {
		if k = strings.TrimSpace(k); k != "" {
			req.Kinds = append(req.Kinds, models.FactKind(k))
		}
	}

	report, err := ingestor.Run(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid request")
	}
	out := output{Ingest: report}
	failed := report.Err() != nil

	if *resolve {
		agg := services.NewAggregator(db, events)
		ledger := services.NewLedger(db, agg, events, loc)
		if out.Resolved, err = resolveRange(ctx, agg, ledger, *start, *end); err != nil {
			log.Error().Err(err).Msg("resolve failed")
			failed = true
		}
		if out.Recomputed, err = agg.RecomputeCompleteWeeks(ctx); err != nil {
			log.Error().Err(err).Msg("recompute failed")
			failed = true
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error().Err(err).Msg("write report")
	}
	if failed {
		os.Exit(1)
	}
}

// resolveRange resolves every open week that overlaps [start, end].
func resolveRange(ctx context.Context, agg *services.Aggregator, ledger *services.Ledger, start, end string) ([]models.ResolveResult, error) {
	weeks, err := agg.Weeks(ctx)
	if err != nil {
		return nil, err
	}
	var results []models.ResolveResult
	for _, w := range weeks {
		if w.IsComplete || w.WeekStart > end || w.WeekEnd < start {
			continue
		}
		res, err := ledger.ResolveWeekFromPrices(ctx, w.WeekStart)
		if err != nil {
			return results, fmt.Errorf("week %s: %w", w.WeekStart, err)
		}
		log.Info().Str("week", w.WeekStart).Int("matched", res.Matched).Int("resolved", res.Resolved).Msg("week resolved")
		results = append(results, res)
	}
	return results, nil
}
