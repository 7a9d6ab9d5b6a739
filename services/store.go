package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/samet0demir/enerji-piyasasi/models"
)

const (
	upsertBatchSize = 500
	maxLatestDays   = 366
)

// Migrate creates or updates the five tables together with their unique and
// range indexes.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.PriceFact{},
		&models.GenerationFact{},
		&models.ConsumptionFact{},
		&models.ForecastRecord{},
		&models.WeeklyPerformanceSummary{},
	)
	if err != nil {
		return storageErr("migrate", err)
	}
	return nil
}

// FactStore persists hourly price, generation and consumption facts keyed by
// (date, hour).
type FactStore struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
	log zerolog.Logger
}

func NewFactStore(db *gorm.DB, loc *time.Location) *FactStore {
	if loc == nil {
		loc = time.UTC
	}
	return &FactStore{
		db:  db,
		loc: loc,
		now: time.Now,
		log: log.With().Str("component", "store").Logger(),
	}
}

// FactSet carries the rows of exactly one fact kind.
type FactSet struct {
	Kind        models.FactKind
	Prices      []models.PriceFact
	Generation  []models.GenerationFact
	Consumption []models.ConsumptionFact
}

func (f FactSet) Len() int {
	switch f.Kind {
	case models.KindPrice:
		return len(f.Prices)
	case models.KindGeneration:
		return len(f.Generation)
	case models.KindConsumption:
		return len(f.Consumption)
	}
	return 0
}

// Rows returns the populated slice for JSON encoding.
func (f FactSet) Rows() any {
	switch f.Kind {
	case models.KindGeneration:
		return f.Generation
	case models.KindConsumption:
		return f.Consumption
	}
	return f.Prices
}

// Head returns a copy holding at most n rows.
func (f FactSet) Head(n int) FactSet {
	if n < 0 || n >= f.Len() {
		return f
	}
	out := FactSet{Kind: f.Kind}
	switch f.Kind {
	case models.KindPrice:
		out.Prices = f.Prices[:n]
	case models.KindGeneration:
		out.Generation = f.Generation[:n]
	case models.KindConsumption:
		out.Consumption = f.Consumption[:n]
	}
	return out
}

type keyedFact[T any] interface {
	*T
	FactKey() (string, string)
	SetFactKey(date, hour string)
}

// prepareFacts validates and normalizes every key, then collapses duplicate
// keys so that the last occurrence wins. Postgres refuses to update the same
// row twice in one INSERT ... ON CONFLICT statement.
func prepareFacts[T any, P keyedFact[T]](rows []T) ([]T, error) {
	index := make(map[string]int, len(rows))
	out := make([]T, 0, len(rows))
	for i := range rows {
		row := rows[i]
		p := P(&row)
		raw, hour := p.FactKey()
		date, err := models.CanonicalDate(raw)
		if err != nil {
			return nil, invalid(fmt.Sprintf("rows[%d].date", i), "%v", err)
		}
		norm, err := models.NormalizeHour(hour)
		if err != nil {
			return nil, invalid(fmt.Sprintf("rows[%d].hour", i), "%v", err)
		}
		p.SetFactKey(date, norm)

		key := date + " " + norm
		if j, ok := index[key]; ok {
			out[j] = row
			continue
		}
		index[key] = len(out)
		out = append(out, row)
	}
	return out, nil
}

func upsertBatch[T any](ctx context.Context, db *gorm.DB, rows []T, columns []string) error {
	updates := make([]string, 0, len(columns)+1)
	updates = append(updates, columns...)
	updates = append(updates, "updated_at")

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "hour"}},
			DoUpdates: clause.AssignmentColumns(updates),
		}).CreateInBatches(rows, upsertBatchSize).Error
	})
}

func upsertKind[T any, P keyedFact[T]](ctx context.Context, s *FactStore, kind models.FactKind, rows []T, columns []string) (int, error) {
	prepared, err := prepareFacts[T, P](rows)
	if err != nil {
		factsFailed.WithLabelValues(kind.String()).Inc()
		return 0, err
	}
	if len(prepared) == 0 {
		return 0, nil
	}
	if err := upsertBatch(ctx, s.db, prepared, columns); err != nil {
		factsFailed.WithLabelValues(kind.String()).Inc()
		return 0, storageErr(fmt.Sprintf("upsert %s facts", kind), err)
	}
	factsUpserted.WithLabelValues(kind.String()).Add(float64(len(rows)))
	s.log.Debug().Str("kind", kind.String()).Int("rows", len(rows)).Int("distinct", len(prepared)).Msg("facts upserted")
	return len(rows), nil
}

// UpsertPrices writes the batch in one transaction and returns the number of
// input rows processed.
func (s *FactStore) UpsertPrices(ctx context.Context, rows []models.PriceFact) (int, error) {
	return upsertKind[models.PriceFact](ctx, s, models.KindPrice, rows, []string{"price", "price_usd", "price_eur"})
}

func (s *FactStore) UpsertGeneration(ctx context.Context, rows []models.GenerationFact) (int, error) {
	return upsertKind[models.GenerationFact](ctx, s, models.KindGeneration, rows, models.GenerationColumns)
}

func (s *FactStore) UpsertConsumption(ctx context.Context, rows []models.ConsumptionFact) (int, error) {
	return upsertKind[models.ConsumptionFact](ctx, s, models.KindConsumption, rows, []string{"consumption"})
}

// UpsertFacts dispatches on set.Kind.
func (s *FactStore) UpsertFacts(ctx context.Context, set FactSet) (int, error) {
	switch set.Kind {
	case models.KindPrice:
		return s.UpsertPrices(ctx, set.Prices)
	case models.KindGeneration:
		return s.UpsertGeneration(ctx, set.Generation)
	case models.KindConsumption:
		return s.UpsertConsumption(ctx, set.Consumption)
	}
	return 0, invalid("kind", "unknown fact kind %q", set.Kind)
}

func validateRange(startDate, endDate string) error {
	if startDate == "" || endDate == "" {
		return invalid("date range", "startDate and endDate are required (format: YYYY-MM-DD)")
	}
	start, err := models.ParseDate(startDate)
	if err != nil {
		return invalid("startDate", "%v", err)
	}
	end, err := models.ParseDate(endDate)
	if err != nil {
		return invalid("endDate", "%v", err)
	}
	if end.Before(start) {
		return invalid("date range", "endDate %s is before startDate %s", endDate, startDate)
	}
	return nil
}

func queryRange[T any](ctx context.Context, db *gorm.DB, startDate, endDate string) ([]T, error) {
	rows := make([]T, 0)
	err := db.WithContext(ctx).
		Where("date >= ? AND date <= ?", startDate, endDate).
		Order("date ASC, hour ASC").
		Find(&rows).Error
	return rows, err
}

// QueryFacts returns rows of kind with date in [startDate, endDate], ordered
// by (date, hour).
func (s *FactStore) QueryFacts(ctx context.Context, kind models.FactKind, startDate, endDate string) (FactSet, error) {
	if err := validateRange(startDate, endDate); err != nil {
		return FactSet{}, err
	}
	set := FactSet{Kind: kind}
	var err error
	switch kind {
	case models.KindPrice:
		set.Prices, err = queryRange[models.PriceFact](ctx, s.db, startDate, endDate)
	case models.KindGeneration:
		set.Generation, err = queryRange[models.GenerationFact](ctx, s.db, startDate, endDate)
	case models.KindConsumption:
		set.Consumption, err = queryRange[models.ConsumptionFact](ctx, s.db, startDate, endDate)
	default:
		return FactSet{}, invalid("kind", "unknown fact kind %q", kind)
	}
	if err != nil {
		return FactSet{}, storageErr(fmt.Sprintf("query %s facts", kind), err)
	}
	return set, nil
}

// LatestFacts returns rows dated from withinDays before today, market time.
func (s *FactStore) LatestFacts(ctx context.Context, kind models.FactKind, withinDays int) (FactSet, error) {
	if withinDays < 1 || withinDays > maxLatestDays {
		return FactSet{}, invalid("days", "must be between 1 and %d", maxLatestDays)
	}
	today := s.now().In(s.loc)
	start := today.AddDate(0, 0, -withinDays).Format(models.DateLayout)
	// Upper bound keeps future-dated rows (day-ahead prices) in the result.
	end := today.AddDate(0, 0, 2).Format(models.DateLayout)
	return s.QueryFacts(ctx, kind, start, end)
}

func (s *FactStore) Counts(ctx context.Context) (models.FactCounts, error) {
	var counts models.FactCounts
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.PriceFact{}).Count(&counts.Price).Error; err != nil {
		return counts, storageErr("count price facts", err)
	}
	if err := db.Model(&models.GenerationFact{}).Count(&counts.Generation).Error; err != nil {
		return counts, storageErr("count generation facts", err)
	}
	if err := db.Model(&models.ConsumptionFact{}).Count(&counts.Consumption).Error; err != nil {
		return counts, storageErr("count consumption facts", err)
	}
	return counts, nil
}

// PriceAt returns the price fact stored for one (date, hour) key.
func (s *FactStore) PriceAt(ctx context.Context, date, hour string) (*models.PriceFact, error) {
	if _, err := models.ParseDate(date); err != nil {
		return nil, invalid("date", "%v", err)
	}
	norm, err := models.NormalizeHour(hour)
	if err != nil {
		return nil, invalid("hour", "%v", err)
	}
	var fact models.PriceFact
	err = s.db.WithContext(ctx).Where("date = ? AND hour = ?", date, norm).Take(&fact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "price", Key: date + " " + norm}
	}
	if err != nil {
		return nil, storageErr("price lookup", err)
	}
	return &fact, nil
}

// priceIndex loads prices for [startDate, endDate] keyed by "date hour".
func priceIndex(ctx context.Context, db *gorm.DB, startDate, endDate string) (map[string]float64, error) {
	rows, err := queryRange[models.PriceFact](ctx, db, startDate, endDate)
	if err != nil {
		return nil, err
	}
	index := make(map[string]float64, len(rows))
	for _, r := range rows {
		index[r.Date+" "+r.Hour] = r.Price
	}
	return index, nil
}
