package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/samet0demir/enerji-piyasasi/models"
)

// Aggregator derives week status and accuracy metrics from forecast records
// and maintains the weekly_performance summaries.
type Aggregator struct {
	db     *gorm.DB
	events *EventBus
	log    zerolog.Logger
}

func NewAggregator(db *gorm.DB, events *EventBus) *Aggregator {
	return &Aggregator{
		db:     db,
		events: events,
		log:    log.With().Str("component", "aggregator").Logger(),
	}
}

type weekRow struct {
	WeekStart       string
	WeekEnd         string
	Total           int
	Completed       int
	FirstPrediction sql.NullString
	LastPrediction  sql.NullString
}

// Layouts the drivers hand back for MIN/MAX over a timestamp column. SQLite
// loses the column type on aggregates and returns text.
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseStoredTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, s.String); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", s.String)
}

func (r weekRow) status() (models.WeekStatus, error) {
	st := weekStatus(r.WeekStart, r.WeekEnd, r.Total, r.Completed)
	var err error
	if st.FirstPrediction, err = parseStoredTime(r.FirstPrediction); err != nil {
		return st, err
	}
	if st.LastPrediction, err = parseStoredTime(r.LastPrediction); err != nil {
		return st, err
	}
	return st, nil
}

// scanWeeks groups forecast records per week, newest first. An empty
// weekStart selects every week.
func scanWeeks(db *gorm.DB, weekStart string) ([]weekRow, error) {
	q := db.Model(&models.ForecastRecord{}).
		Select("week_start, week_end, COUNT(*) AS total, COUNT(actual_price) AS completed, " +
			"MIN(forecast_datetime) AS first_prediction, MAX(forecast_datetime) AS last_prediction").
		Group("week_start, week_end").
		Order("week_start DESC")
	if weekStart != "" {
		q = q.Where("week_start = ?", weekStart)
	}
	var rows []weekRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func weekStatus(weekStart, weekEnd string, total, completed int) models.WeekStatus {
	st := models.WeekStatus{
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Total:     total,
		Completed: completed,
		State:     models.WeekEmpty,
	}
	if total == 0 {
		return st
	}
	st.CompletionPercentage = int(math.Round(100 * float64(completed) / float64(total)))
	st.IsComplete = completed == total
	if st.IsComplete {
		st.State = models.WeekComplete
	} else {
		st.State = models.WeekOpen
	}
	return st
}

// computeMetrics reports false when no record has an actual price.
// The error sign is predicted minus actual.
func computeMetrics(records []models.ForecastRecord) (models.PerformanceMetrics, bool) {
	abs := make([]float64, 0, len(records))
	sq := make([]float64, 0, len(records))
	pct := make([]float64, 0, len(records))
	for _, r := range records {
		if r.ActualPrice == nil {
			continue
		}
		e := r.PredictedPrice - *r.ActualPrice
		abs = append(abs, math.Abs(e))
		sq = append(sq, e*e)
		if r.PercentageError != nil {
			pct = append(pct, math.Abs(*r.PercentageError))
		}
	}
	if len(abs) == 0 {
		return models.PerformanceMetrics{}, false
	}
	m := models.PerformanceMetrics{
		MAE:     stat.Mean(abs, nil),
		RMSE:    math.Sqrt(stat.Mean(sq, nil)),
		Samples: len(abs),
	}
	if len(pct) > 0 {
		m.MAPE = stat.Mean(pct, nil)
	}
	return m, true
}

func weekRecords(db *gorm.DB, weekStart string, resolvedOnly bool) ([]models.ForecastRecord, error) {
	records := make([]models.ForecastRecord, 0)
	q := db.Where("week_start = ?", weekStart)
	if resolvedOnly {
		q = q.Where("actual_price IS NOT NULL")
	}
	err := q.Order("forecast_datetime ASC").Find(&records).Error
	return records, err
}

func (a *Aggregator) ComputeWeekStatus(ctx context.Context, weekStart string) (models.WeekStatus, error) {
	if _, err := models.ParseDate(weekStart); err != nil {
		return models.WeekStatus{}, invalid("week_start", "%v", err)
	}
	rows, err := scanWeeks(a.db.WithContext(ctx), weekStart)
	if err != nil {
		return models.WeekStatus{}, storageErr("week status", err)
	}
	if len(rows) == 0 {
		weekEnd, _ := models.WeekEndOf(weekStart)
		return weekStatus(weekStart, weekEnd, 0, 0), nil
	}
	st, err := rows[0].status()
	if err != nil {
		return models.WeekStatus{}, storageErr("week status", err)
	}
	return st, nil
}

// ComputeWeeklyPerformance fails with NotFoundError while no record of the
// week is resolved.
func (a *Aggregator) ComputeWeeklyPerformance(ctx context.Context, weekStart string) (models.PerformanceMetrics, error) {
	if _, err := models.ParseDate(weekStart); err != nil {
		return models.PerformanceMetrics{}, invalid("week_start", "%v", err)
	}
	records, err := weekRecords(a.db.WithContext(ctx), weekStart, true)
	if err != nil {
		return models.PerformanceMetrics{}, storageErr("weekly performance", err)
	}
	m, ok := computeMetrics(records)
	if !ok {
		return models.PerformanceMetrics{}, &NotFoundError{Resource: "resolved forecasts for week", Key: weekStart}
	}
	return m, nil
}

// settleWeek upserts the summary of weekStart when every record is resolved.
// created reports whether the summary did not exist before.
func (a *Aggregator) settleWeek(tx *gorm.DB, weekStart string) (summary *models.WeeklyPerformanceSummary, created bool, err error) {
	rows, err := scanWeeks(tx, weekStart)
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	st := weekStatus(rows[0].WeekStart, rows[0].WeekEnd, rows[0].Total, rows[0].Completed)
	if !st.IsComplete {
		return nil, false, nil
	}
	records, err := weekRecords(tx, weekStart, true)
	if err != nil {
		return nil, false, err
	}
	m, _ := computeMetrics(records)

	var existing int64
	if err := tx.Model(&models.WeeklyPerformanceSummary{}).Where("week_start = ?", weekStart).Count(&existing).Error; err != nil {
		return nil, false, err
	}

	summary = &models.WeeklyPerformanceSummary{
		WeekStart:        st.WeekStart,
		WeekEnd:          st.WeekEnd,
		MAPE:             m.MAPE,
		MAE:              m.MAE,
		RMSE:             m.RMSE,
		TotalPredictions: st.Total,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "week_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"week_end", "mape", "mae", "rmse", "total_predictions", "updated_at"}),
	}).Create(summary).Error
	if err != nil {
		return nil, false, err
	}
	return summary, existing == 0, nil
}

// announce publishes week_completed for summaries written for the first time.
func (a *Aggregator) announce(ctx context.Context, summaries []*models.WeeklyPerformanceSummary) {
	for _, s := range summaries {
		weeksCompleted.Inc()
		a.log.Info().Str("week_start", s.WeekStart).Float64("mape", s.MAPE).Msg("week complete")
		a.events.Notify(ctx, EventWeekCompleted, s)
	}
}

// SettleWeek persists the summary of a complete week. It returns nil while
// the week is still open.
func (a *Aggregator) SettleWeek(ctx context.Context, weekStart string) (*models.WeeklyPerformanceSummary, error) {
	if _, err := models.ParseDate(weekStart); err != nil {
		return nil, invalid("week_start", "%v", err)
	}
	var (
		summary *models.WeeklyPerformanceSummary
		created bool
	)
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		summary, created, err = a.settleWeek(tx, weekStart)
		return err
	})
	if err != nil {
		return nil, storageErr("settle week", err)
	}
	if created {
		a.announce(ctx, []*models.WeeklyPerformanceSummary{summary})
	}
	return summary, nil
}

// RecomputeCompleteWeeks re-derives the summary of every complete week and
// returns how many were written.
func (a *Aggregator) RecomputeCompleteWeeks(ctx context.Context) (int, error) {
	var (
		written int
		fresh   []*models.WeeklyPerformanceSummary
	)
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := scanWeeks(tx, "")
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.Total == 0 || r.Completed != r.Total {
				continue
			}
			summary, created, err := a.settleWeek(tx, r.WeekStart)
			if err != nil {
				return err
			}
			if summary == nil {
				continue
			}
			written++
			if created {
				fresh = append(fresh, summary)
			}
		}
		return nil
	})
	if err != nil {
		return 0, storageErr("recompute weeks", err)
	}
	a.announce(ctx, fresh)
	a.log.Info().Int("weeks", written).Msg("weekly summaries recomputed")
	return written, nil
}

// WeeklyPerformance returns up to limit summaries, newest week first.
func (a *Aggregator) WeeklyPerformance(ctx context.Context, limit int) ([]models.WeeklyPerformanceSummary, error) {
	if limit < 1 {
		return nil, invalid("limit", "must be a positive integer")
	}
	out := make([]models.WeeklyPerformanceSummary, 0, limit)
	err := a.db.WithContext(ctx).Order("week_start DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, storageErr("weekly performance", err)
	}
	return out, nil
}

// Summary returns the persisted summary of a week, or nil when none exists.
func (a *Aggregator) Summary(ctx context.Context, weekStart string) (*models.WeeklyPerformanceSummary, error) {
	var s models.WeeklyPerformanceSummary
	err := a.db.WithContext(ctx).Where("week_start = ?", weekStart).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("weekly summary", err)
	}
	return &s, nil
}

func (a *Aggregator) summaries(ctx context.Context) (map[string]models.WeeklyPerformanceSummary, error) {
	var rows []models.WeeklyPerformanceSummary
	if err := a.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, storageErr("weekly summaries", err)
	}
	out := make(map[string]models.WeeklyPerformanceSummary, len(rows))
	for _, r := range rows {
		out[r.WeekStart] = r
	}
	return out, nil
}

// Weeks returns the live status of every week that has forecast records.
func (a *Aggregator) Weeks(ctx context.Context) ([]models.WeekStatus, error) {
	rows, err := scanWeeks(a.db.WithContext(ctx), "")
	if err != nil {
		return nil, storageErr("list weeks", err)
	}
	out := make([]models.WeekStatus, 0, len(rows))
	for _, r := range rows {
		st, err := r.status()
		if err != nil {
			return nil, storageErr("list weeks", err)
		}
		out = append(out, st)
	}
	return out, nil
}
