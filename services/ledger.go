package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/samet0demir/enerji-piyasasi/models"
)

// Ledger records hourly price forecasts and resolves them against observed
// prices.
type Ledger struct {
	db     *gorm.DB
	agg    *Aggregator
	events *EventBus
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

func NewLedger(db *gorm.DB, agg *Aggregator, events *EventBus, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{
		db:     db,
		agg:    agg,
		events: events,
		loc:    loc,
		now:    time.Now,
		log:    log.With().Str("component", "ledger").Logger(),
	}
}

// marketDay returns midnight of date in the market timezone.
func (l *Ledger) marketDay(date string) (time.Time, error) {
	d, err := models.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, l.loc), nil
}

func (l *Ledger) newRecord(i int, in models.ForecastInput) (models.ForecastRecord, error) {
	field := func(name string) string { return fmt.Sprintf("forecasts[%d].%s", i, name) }

	weekStart, err := models.CanonicalDate(in.WeekStart)
	if err != nil {
		return models.ForecastRecord{}, invalid(field("week_start"), "%v", err)
	}
	weekEnd, err := models.CanonicalDate(in.WeekEnd)
	if err != nil {
		return models.ForecastRecord{}, invalid(field("week_end"), "%v", err)
	}
	start, err := l.marketDay(weekStart)
	if err != nil {
		return models.ForecastRecord{}, invalid(field("week_start"), "%v", err)
	}
	end, err := l.marketDay(weekEnd)
	if err != nil {
		return models.ForecastRecord{}, invalid(field("week_end"), "%v", err)
	}
	if end.Before(start) {
		return models.ForecastRecord{}, invalid(field("week_end"), "%s is before week_start %s", weekEnd, weekStart)
	}
	if in.ForecastDatetime.IsZero() {
		return models.ForecastRecord{}, invalid(field("forecast_datetime"), "required")
	}
	at := in.ForecastDatetime.UTC()
	if !models.HourAligned(at) {
		return models.ForecastRecord{}, invalid(field("forecast_datetime"), "%s is not on the hour", at.Format(time.RFC3339))
	}
	if at.Before(start) || !at.Before(end.AddDate(0, 0, 1)) {
		return models.ForecastRecord{}, invalid(field("forecast_datetime"), "%s is outside week %s..%s", at.Format(time.RFC3339), weekStart, weekEnd)
	}
	if math.IsNaN(in.PredictedPrice) || math.IsInf(in.PredictedPrice, 0) {
		return models.ForecastRecord{}, invalid(field("predicted_price"), "must be a finite number")
	}
	return models.ForecastRecord{
		WeekStart:        weekStart,
		WeekEnd:          weekEnd,
		ForecastDatetime: at,
		PredictedPrice:   in.PredictedPrice,
		ProphetComponent: in.Prophet,
		XGBoostComponent: in.XGBoost,
		LSTMComponent:    in.LSTM,
	}, nil
}

// checkWeekOpen rejects writes into a settled week and week_end mismatches.
func checkWeekOpen(tx *gorm.DB, weekStart, weekEnd string) error {
	var settled int64
	if err := tx.Model(&models.WeeklyPerformanceSummary{}).Where("week_start = ?", weekStart).Count(&settled).Error; err != nil {
		return err
	}
	if settled > 0 {
		return &ConflictError{Resource: "week", Key: weekStart, Reason: "already complete"}
	}
	var ends []string
	if err := tx.Model(&models.ForecastRecord{}).Where("week_start = ?", weekStart).Distinct("week_end").Pluck("week_end", &ends).Error; err != nil {
		return err
	}
	for _, e := range ends {
		if e != weekEnd {
			return &ConflictError{Resource: "week", Key: weekStart, Reason: fmt.Sprintf("week_end is %s, not %s", e, weekEnd)}
		}
	}
	return nil
}

// RecordForecasts stores a batch of new forecasts in one transaction. Any
// invalid or duplicate entry rejects the whole batch.
func (l *Ledger) RecordForecasts(ctx context.Context, inputs []models.ForecastInput) ([]models.ForecastRecord, error) {
	if len(inputs) == 0 {
		return nil, invalid("forecasts", "at least one forecast is required")
	}
	records := make([]models.ForecastRecord, 0, len(inputs))
	weekEnds := make(map[string]string)
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		rec, err := l.newRecord(i, in)
		if err != nil {
			return nil, err
		}
		if end, ok := weekEnds[rec.WeekStart]; ok && end != rec.WeekEnd {
			return nil, invalid(fmt.Sprintf("forecasts[%d].week_end", i), "%s disagrees with %s in the same batch", rec.WeekEnd, end)
		}
		weekEnds[rec.WeekStart] = rec.WeekEnd
		key := rec.WeekStart + "|" + rec.ForecastDatetime.Format(time.RFC3339)
		if _, dup := seen[key]; dup {
			return nil, &ConflictError{Resource: "forecast", Key: key, Reason: "repeated in batch"}
		}
		seen[key] = struct{}{}
		records = append(records, rec)
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for ws, we := range weekEnds {
			if err := checkWeekOpen(tx, ws, we); err != nil {
				return err
			}
		}
		for i := range records {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&records[i])
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return &ConflictError{
					Resource: "forecast",
					Key:      records[i].WeekStart + " " + records[i].ForecastDatetime.Format(time.RFC3339),
					Reason:   "already recorded",
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("record forecasts", err)
	}

	weeks := sortedKeys(weekEnds)
	forecastsRecorded.Add(float64(len(records)))
	l.log.Info().Int("records", len(records)).Strs("weeks", weeks).Msg("forecasts recorded")
	l.events.Notify(ctx, EventForecastsRecorded, map[string]any{"count": len(records), "weeks": weeks})
	return records, nil
}

// RecordForecast stores a single forecast with null actual fields.
func (l *Ledger) RecordForecast(ctx context.Context, in models.ForecastInput) (*models.ForecastRecord, error) {
	records, err := l.RecordForecasts(ctx, []models.ForecastInput{in})
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// forecastErrors returns |predicted - actual| and the signed percentage
// error relative to actual, nil when actual is zero.
func forecastErrors(predicted, actual float64) (float64, *float64) {
	diff := predicted - actual
	if actual == 0 {
		return math.Abs(diff), nil
	}
	pct := 100 * diff / actual
	return math.Abs(diff), &pct
}

func (l *Ledger) resolveRecord(tx *gorm.DB, rec *models.ForecastRecord, actual float64, at time.Time) (bool, error) {
	absErr, pctErr := forecastErrors(rec.PredictedPrice, actual)
	var pct any
	if pctErr != nil {
		pct = *pctErr
	}
	res := tx.Model(&models.ForecastRecord{}).
		Where("id = ? AND actual_price IS NULL", rec.ID).
		Updates(map[string]any{
			"actual_price":     actual,
			"absolute_error":   absErr,
			"percentage_error": pct,
			"resolved_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// settleTouched settles each week inside tx and returns the summaries that
// were written for the first time.
func (l *Ledger) settleTouched(tx *gorm.DB, weeks []string) ([]*models.WeeklyPerformanceSummary, error) {
	var fresh []*models.WeeklyPerformanceSummary
	for _, ws := range weeks {
		summary, created, err := l.agg.settleWeek(tx, ws)
		if err != nil {
			return nil, err
		}
		if created {
			fresh = append(fresh, summary)
		}
	}
	return fresh, nil
}

// ResolveForecast backfills the actual price on every open record at
// datetime. Records already resolved are left as they are. A timestamp with
// no forecast yields NotFoundError and changes nothing.
func (l *Ledger) ResolveForecast(ctx context.Context, datetime time.Time, actual float64) (models.ResolveResult, error) {
	if datetime.IsZero() {
		return models.ResolveResult{}, invalid("datetime", "required")
	}
	if math.IsNaN(actual) || math.IsInf(actual, 0) {
		return models.ResolveResult{}, invalid("actual_price", "must be a finite number")
	}
	at := datetime.UTC()
	result := models.ResolveResult{Weeks: []string{}}
	var fresh []*models.WeeklyPerformanceSummary

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var records []models.ForecastRecord
		if err := tx.Where("forecast_datetime = ?", at).Order("week_start ASC").Find(&records).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return &NotFoundError{Resource: "forecast at", Key: at.Format(time.RFC3339)}
		}
		result.Matched = len(records)

		touched := make(map[string]string)
		now := l.now().UTC()
		for i := range records {
			if records[i].Resolved() {
				continue
			}
			ok, err := l.resolveRecord(tx, &records[i], actual, now)
			if err != nil {
				return err
			}
			if ok {
				result.Resolved++
				touched[records[i].WeekStart] = records[i].WeekEnd
			}
		}
		result.Weeks = sortedKeys(touched)

		var err error
		fresh, err = l.settleTouched(tx, result.Weeks)
		return err
	})
	if err != nil {
		return models.ResolveResult{}, storageErr("resolve forecast", err)
	}

	l.afterResolve(ctx, result, fresh)
	return result, nil
}

// ResolveWeekFromPrices resolves every open record of the week whose market
// hour has a stored price fact. Matched counts the open records examined.
func (l *Ledger) ResolveWeekFromPrices(ctx context.Context, weekStart string) (models.ResolveResult, error) {
	if _, err := models.ParseDate(weekStart); err != nil {
		return models.ResolveResult{}, invalid("week_start", "%v", err)
	}
	result := models.ResolveResult{Weeks: []string{}}
	var fresh []*models.WeeklyPerformanceSummary

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		records, err := weekRecords(tx, weekStart, false)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return &NotFoundError{Resource: "week", Key: weekStart}
		}
		through, err := models.AddDays(records[0].WeekEnd, 1)
		if err != nil {
			return err
		}
		prices, err := priceIndex(ctx, tx, weekStart, through)
		if err != nil {
			return err
		}

		now := l.now().UTC()
		for i := range records {
			if records[i].Resolved() {
				continue
			}
			result.Matched++
			date, hour := models.FactKeyAt(records[i].ForecastDatetime, l.loc)
			price, ok := prices[date+" "+hour]
			if !ok {
				continue
			}
			updated, err := l.resolveRecord(tx, &records[i], price, now)
			if err != nil {
				return err
			}
			if updated {
				result.Resolved++
			}
		}
		if result.Resolved > 0 {
			result.Weeks = []string{weekStart}
		}
		fresh, err = l.settleTouched(tx, []string{weekStart})
		return err
	})
	if err != nil {
		return models.ResolveResult{}, storageErr("resolve week", err)
	}

	l.afterResolve(ctx, result, fresh)
	return result, nil
}

func (l *Ledger) afterResolve(ctx context.Context, result models.ResolveResult, fresh []*models.WeeklyPerformanceSummary) {
	if result.Resolved > 0 {
		forecastsResolved.Add(float64(result.Resolved))
		l.log.Info().Int("resolved", result.Resolved).Strs("weeks", result.Weeks).Msg("forecasts resolved")
		l.events.Notify(ctx, EventForecastResolved, result)
	}
	l.agg.announce(ctx, fresh)
}

// ListForecasts returns the records of a week ordered by forecast_datetime.
func (l *Ledger) ListForecasts(ctx context.Context, weekStart string) ([]models.ForecastRecord, error) {
	if _, err := models.ParseDate(weekStart); err != nil {
		return nil, invalid("week_start", "%v", err)
	}
	records, err := weekRecords(l.db.WithContext(ctx), weekStart, false)
	if err != nil {
		return nil, storageErr("list forecasts", err)
	}
	return records, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
