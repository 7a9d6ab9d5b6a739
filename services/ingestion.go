package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/samet0demir/enerji-piyasasi/models"
)

// FactSource fetches hourly facts for the market days [start, end].
type FactSource interface {
	FetchPrices(ctx context.Context, start, end time.Time) ([]models.PriceFact, error)
	FetchGeneration(ctx context.Context, start, end time.Time) ([]models.GenerationFact, error)
	FetchConsumption(ctx context.Context, start, end time.Time) ([]models.ConsumptionFact, error)
}

// Chunk sizes in days. The generation endpoint rejects long ranges.
var chunkDays = map[models.FactKind]int{
	models.KindPrice:       365,
	models.KindGeneration:  30,
	models.KindConsumption: 365,
}

type IngestRequest struct {
	StartDate string            `json:"startDate"`
	EndDate   string            `json:"endDate"`
	Kinds     []models.FactKind `json:"kinds"`
}

type KindResult struct {
	Kind     models.FactKind `json:"kind"`
	Fetched  int             `json:"fetched"`
	Inserted int             `json:"inserted"`
	Chunks   int             `json:"chunks"`
	Error    string          `json:"error,omitempty"`

	err error
}

type IngestReport struct {
	RunID      string       `json:"run_id"`
	StartDate  string       `json:"startDate"`
	EndDate    string       `json:"endDate"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []KindResult `json:"results"`
}

// Err joins the per-kind failures, nil when every kind was stored.
func (r *IngestReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Kind, res.err))
		}
	}
	return errors.Join(errs...)
}

// Ingestor pulls facts from a FactSource into the store.
type Ingestor struct {
	source FactSource
	store  *FactStore
	events *EventBus
	loc    *time.Location
	log    zerolog.Logger
}

func NewIngestor(source FactSource, store *FactStore, events *EventBus, loc *time.Location) *Ingestor {
	if loc == nil {
		loc = time.UTC
	}
	return &Ingestor{
		source: source,
		store:  store,
		events: events,
		loc:    loc,
		log:    log.With().Str("component", "ingest").Logger(),
	}
}

type dayRange struct {
	start, end time.Time
}

// splitDays cuts [start, end] into inclusive ranges of at most size days.
func splitDays(start, end time.Time, size int) []dayRange {
	var out []dayRange
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, size) {
		last := cur.AddDate(0, 0, size-1)
		if last.After(end) {
			last = end
		}
		out = append(out, dayRange{start: cur, end: last})
	}
	return out
}

// Run ingests each requested kind independently. A failing kind is recorded
// in its result and the run moves on. The returned error covers only a bad
// request; use IngestReport.Err for per-kind failures.
func (in *Ingestor) Run(ctx context.Context, req IngestRequest) (*IngestReport, error) {
	if err := validateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	kinds := make([]models.FactKind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		parsed, err := models.ParseFactKind(string(k))
		if err != nil {
			return nil, invalid("kinds", "%v", err)
		}
		kinds = append(kinds, parsed)
	}
	if len(kinds) == 0 {
		kinds = models.AllFactKinds
	}

	start, _ := time.ParseInLocation(models.DateLayout, req.StartDate, in.loc)
	end, _ := time.ParseInLocation(models.DateLayout, req.EndDate, in.loc)

	report := &IngestReport{
		RunID:     uuid.NewString(),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		StartedAt: time.Now().UTC(),
	}
	logger := in.log.With().Str("run_id", report.RunID).Logger()
	logger.Info().Str("start", req.StartDate).Str("end", req.EndDate).Int("kinds", len(kinds)).Msg("ingestion started")

	for _, kind := range kinds {
		began := time.Now()
		res := in.runKind(ctx, kind, start, end)
		ingestDuration.WithLabelValues(kind.String()).Observe(time.Since(began).Seconds())

		if res.err != nil {
			res.Error = res.err.Error()
			logger.Error().Err(res.err).Str("kind", kind.String()).Int("chunks", res.Chunks).Msg("kind failed")
		} else {
			logger.Info().Str("kind", kind.String()).Int("fetched", res.Fetched).Int("inserted", res.Inserted).Msg("kind stored")
			in.events.Notify(ctx, EventFactsIngested, map[string]any{
				"run_id":    report.RunID,
				"kind":      kind,
				"inserted":  res.Inserted,
				"startDate": req.StartDate,
				"endDate":   req.EndDate,
			})
		}
		report.Results = append(report.Results, res)
	}

	report.FinishedAt = time.Now().UTC()
	logger.Info().Dur("took", report.FinishedAt.Sub(report.StartedAt)).Msg("ingestion finished")
	return report, nil
}

// runKind fetches every chunk first and upserts once, so a kind is either
// fully stored for the range or not at all.
func (in *Ingestor) runKind(ctx context.Context, kind models.FactKind, start, end time.Time) KindResult {
	res := KindResult{Kind: kind}
	set := FactSet{Kind: kind}

	for _, chunk := range splitDays(start, end, chunkDays[kind]) {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}
		res.Chunks++
		var err error
		switch kind {
		case models.KindPrice:
			var rows []models.PriceFact
			rows, err = in.source.FetchPrices(ctx, chunk.start, chunk.end)
			set.Prices = append(set.Prices, rows...)
		case models.KindGeneration:
			var rows []models.GenerationFact
			rows, err = in.source.FetchGeneration(ctx, chunk.start, chunk.end)
			set.Generation = append(set.Generation, rows...)
		case models.KindConsumption:
			var rows []models.ConsumptionFact
			rows, err = in.source.FetchConsumption(ctx, chunk.start, chunk.end)
			set.Consumption = append(set.Consumption, rows...)
		}
		if err != nil {
			res.err = fmt.Errorf("fetch %s..%s: %w", chunk.start.Format(models.DateLayout), chunk.end.Format(models.DateLayout), err)
			return res
		}
	}

	res.Fetched = set.Len()
	inserted, err := in.store.UpsertFacts(ctx, set)
	if err != nil {
		res.err = err
		return res
	}
	res.Inserted = inserted
	return res
}
