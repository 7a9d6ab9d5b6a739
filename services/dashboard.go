package services

import (
	"context"
	"time"

	"github.com/samet0demir/enerji-piyasasi/models"
)

const trendWeeks = 8

// Dashboard is the read side used by the HTTP layer. Every call reads the
// committed state; nothing is cached between requests.
type Dashboard struct {
	store  *FactStore
	ledger *Ledger
	agg    *Aggregator
	loc    *time.Location
	now    func() time.Time
}

func NewDashboard(store *FactStore, ledger *Ledger, agg *Aggregator, loc *time.Location) *Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	return &Dashboard{store: store, ledger: ledger, agg: agg, loc: loc, now: time.Now}
}

func (d *Dashboard) Facts(ctx context.Context, kind models.FactKind, startDate, endDate string) (FactSet, error) {
	return d.store.QueryFacts(ctx, kind, startDate, endDate)
}

func (d *Dashboard) LatestFacts(ctx context.Context, kind models.FactKind, withinDays int) (FactSet, error) {
	return d.store.LatestFacts(ctx, kind, withinDays)
}

func (d *Dashboard) WeeklyPerformance(ctx context.Context, limit int) ([]models.WeeklyPerformanceSummary, error) {
	return d.agg.WeeklyPerformance(ctx, limit)
}

func (d *Dashboard) ForecastHistory(ctx context.Context, weekStart string) ([]models.ForecastRecord, error) {
	return d.ledger.ListForecasts(ctx, weekStart)
}

// ListAvailableWeeks returns every week with forecast records, newest first.
// Performance is attached only to complete weeks.
func (d *Dashboard) ListAvailableWeeks(ctx context.Context) ([]models.AvailableWeek, error) {
	weeks, err := d.agg.Weeks(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := d.agg.summaries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.AvailableWeek, 0, len(weeks))
	for _, w := range weeks {
		aw := models.AvailableWeek{WeekStatus: w}
		if s, ok := summaries[w.WeekStart]; ok && w.IsComplete {
			aw.Performance = &s
		}
		out = append(out, aw)
	}
	return out, nil
}

// GetWeekDetail returns the week's forecasts together with generation and
// consumption facts dated weekStart through the day after weekEnd.
func (d *Dashboard) GetWeekDetail(ctx context.Context, weekStart string) (*models.WeekDetail, error) {
	forecasts, err := d.ledger.ListForecasts(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	if len(forecasts) == 0 {
		return nil, &NotFoundError{Resource: "week", Key: weekStart}
	}
	weekEnd := forecasts[0].WeekEnd
	through, err := models.AddDays(weekEnd, 1)
	if err != nil {
		return nil, storageErr("week detail", err)
	}

	gen, err := d.store.QueryFacts(ctx, models.KindGeneration, weekStart, through)
	if err != nil {
		return nil, err
	}
	cons, err := d.store.QueryFacts(ctx, models.KindConsumption, weekStart, through)
	if err != nil {
		return nil, err
	}
	perf, err := d.agg.Summary(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	return &models.WeekDetail{
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
		Forecasts:   forecasts,
		Generation:  gen.Generation,
		Consumption: cons.Consumption,
		Performance: perf,
	}, nil
}

// Snapshot builds the dashboard payload for the market week containing now.
func (d *Dashboard) Snapshot(ctx context.Context) (*models.DashboardSnapshot, error) {
	now := d.now().In(d.loc)
	thisWeek := models.WeekStartOf(now)
	thisEnd, _ := models.WeekEndOf(thisWeek)
	lastWeek, _ := models.AddDays(thisWeek, -7)

	current, err := d.ledger.ListForecasts(ctx, thisWeek)
	if err != nil {
		return nil, err
	}
	points := make([]models.ForecastPoint, 0, len(current))
	for _, r := range current {
		points = append(points, models.ForecastPoint{
			Datetime:  r.ForecastDatetime,
			Predicted: r.PredictedPrice,
			Actual:    r.ActualPrice,
		})
	}

	previous, err := d.ledger.ListForecasts(ctx, lastWeek)
	if err != nil {
		return nil, err
	}
	comparison := make([]models.ComparisonPoint, 0, len(previous))
	for _, r := range previous {
		if !r.Resolved() {
			continue
		}
		cp := models.ComparisonPoint{
			Datetime:     r.ForecastDatetime,
			Predicted:    r.PredictedPrice,
			Actual:       *r.ActualPrice,
			ErrorPercent: r.PercentageError,
		}
		if r.AbsoluteError != nil {
			cp.Error = *r.AbsoluteError
		}
		comparison = append(comparison, cp)
	}

	lastPerf, err := d.agg.Summary(ctx, lastWeek)
	if err != nil {
		return nil, err
	}
	trend, err := d.agg.WeeklyPerformance(ctx, trendWeeks)
	if err != nil {
		return nil, err
	}

	return &models.DashboardSnapshot{
		GeneratedAt: now.UTC(),
		CurrentWeek: models.CurrentWeek{
			Start:     thisWeek,
			End:       thisEnd,
			Forecasts: points,
		},
		LastWeekPerformance: lastPerf,
		LastWeekComparison:  comparison,
		HistoricalTrend:     trend,
	}, nil
}

func (d *Dashboard) Stats(ctx context.Context) (*models.Stats, error) {
	counts, err := d.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	weeks, err := d.agg.Weeks(ctx)
	if err != nil {
		return nil, err
	}
	st := &models.Stats{
		Counts:      counts,
		DaysOfData:  counts.Price / 24,
		Weeks:       len(weeks),
		LastUpdated: d.now().UTC(),
	}
	for _, w := range weeks {
		if w.IsComplete {
			st.CompleteWeeks++
		}
	}
	return st, nil
}
