package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samet0demir/enerji-piyasasi/models"
)

func TestRecordForecastStartsUnresolved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.forecast("2025-10-20", 9, 2450)
	in.Prophet, in.XGBoost, in.LSTM = ptr(2400), ptr(2500), ptr(2450)
	rec, err := env.ledger.RecordForecast(ctx, in)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)

	records, err := env.ledger.ListForecasts(ctx, testWeekStart)
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.True(t, got.ForecastDatetime.Equal(env.hourAt("2025-10-20", 9)))
	assert.Nil(t, got.ActualPrice)
	assert.Nil(t, got.AbsoluteError)
	assert.Nil(t, got.PercentageError)
	assert.Nil(t, got.ResolvedAt)
	require.NotNil(t, got.XGBoostComponent)
	assert.Equal(t, 2500.0, *got.XGBoostComponent)
}

func TestRecordForecastIsWriteOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordForecast(ctx, env.forecast("2025-10-20", 9, 2450))
	require.NoError(t, err)
	_, err = env.ledger.RecordForecast(ctx, env.forecast("2025-10-20", 9, 9999))
	assert.True(t, IsConflict(err), "got %v", err)

	records, err := env.ledger.ListForecasts(ctx, testWeekStart)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2450.0, records[0].PredictedPrice)
}

func TestRecordForecastsBatchIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordForecast(ctx, env.forecast("2025-10-20", 2, 1))
	require.NoError(t, err)

	_, err = env.ledger.RecordForecasts(ctx, []models.ForecastInput{
		env.forecast("2025-10-20", 1, 1),
		env.forecast("2025-10-20", 2, 1),
	})
	assert.True(t, IsConflict(err))

	records, err := env.ledger.ListForecasts(ctx, testWeekStart)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = env.ledger.RecordForecasts(ctx, []models.ForecastInput{
		env.forecast("2025-10-20", 5, 1),
		env.forecast("2025-10-20", 5, 2),
	})
	assert.True(t, IsConflict(err))
}

func TestRecordForecastValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *models.ForecastInput)
	}{
		{"malformed week_start", func(in *models.ForecastInput) { in.WeekStart = "2025/10/20" }},
		{"week_end before start", func(in *models.ForecastInput) { in.WeekEnd = "2025-10-19" }},
		{"missing datetime", func(in *models.ForecastInput) { in.ForecastDatetime = time.Time{} }},
		{"not on the hour", func(in *models.ForecastInput) { in.ForecastDatetime = in.ForecastDatetime.Add(30 * time.Minute) }},
		{"before the week", func(in *models.ForecastInput) { in.ForecastDatetime = env.hourAt("2025-10-19", 23) }},
		{"after the week", func(in *models.ForecastInput) { in.ForecastDatetime = env.hourAt("2025-10-27", 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := env.forecast("2025-10-20", 0, 100)
			tt.mutate(&in)
			_, err := env.ledger.RecordForecast(ctx, in)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}

	_, err := env.ledger.RecordForecasts(ctx, nil)
	assert.True(t, IsValidation(err))

	_, err = env.ledger.RecordForecast(ctx, env.forecast("2025-10-26", 23, 100))
	assert.NoError(t, err, "last hour of the week is inside")
}

func TestRecordForecastRejectsWeekEndMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordForecast(ctx, env.forecast("2025-10-20", 0, 100))
	require.NoError(t, err)

	in := env.forecast("2025-10-20", 1, 100)
	in.WeekEnd = "2025-10-27"
	_, err = env.ledger.RecordForecast(ctx, in)
	assert.True(t, IsConflict(err), "got %v", err)
}

func TestRecordForecastIntoCompleteWeek(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordForecast(ctx, env.forecast("2025-10-20", 0, 100))
	require.NoError(t, err)
	_, err = env.ledger.ResolveForecast(ctx, env.hourAt("2025-10-20", 0), 100)
	require.NoError(t, err)

	_, err = env.ledger.RecordForecast(ctx, env.forecast("2025-10-20", 1, 100))
	assert.True(t, IsConflict(err), "got %v", err)

	st, err := env.agg.ComputeWeekStatus(ctx, testWeekStart)
	require.NoError(t, err)
	assert.Equal(t, models.WeekComplete, st.State)
}

func TestResolveForecastComputesErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	resolvedAt := time.Date(2025, 10, 21, 12, 0, 0, 0, time.UTC)
	env.ledger.now = func() time.Time { return resolvedAt }

	_, err := env.ledger.RecordForecasts(ctx, []models.ForecastInput{
		env.forecast("2025-10-20", 0, 100),
		env.forecast("2025-10-20", 1, 100),
	})
	require.NoError(t, err)

	res, err := env.ledger.ResolveForecast(ctx, env.hourAt("2025-10-20", 0), 110)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, []string{testWeekStart}, res.Weeks)

	records, err := env.ledger.ListForecasts(ctx, testWeekStart)
	require.NoError(t, err)
	got := records[0]
	require.NotNil(t, got.ActualPrice)
	assert.Equal(t, 110.0, *got.ActualPrice)
	assert.InDelta(t, 10, *got.AbsoluteError, 1e-9)
	assert.InDelta(t, -9.0909, *got.PercentageError, 1e-3)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(resolvedAt))
	assert.Nil(t, records[1].ActualPrice)
}

func TestResolveForecastLeavesResolvedRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordForecasts(ctx, []models.ForecastInput{
		env.forecast("2025-10-20", 0, 100),
		env.forecast("2025-10-20", 1, 100),
	})
	require.NoError(t, err)
	_, err = env.ledger.ResolveForecast(ctx, env.hourAt("2025-10-20", 0), 110)
	require.NoError(t, err)

	res, err := env.ledger.ResolveForecast(ctx, env.hourAt("2025-10-20", 0), 500)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Zero(t, res.Resolved)

	records, err := env.ledger.ListForecasts(ctx, testWeekStart)
	require.NoError(t, err)
	assert.Equal(t, 110.0, *records[0].ActualPrice)
}

func TestResolveForecastNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordForecast(ctx, env.forecast("2025-10-20", 0, 100))
	require.NoError(t, err)

	_, err = env.ledger.ResolveForecast(ctx, env.hourAt("2025-10-20", 5), 110)
	assert.True(t, IsNotFound(err), "got %v", err)

	records, err := env.ledger.ListForecasts(ctx, testWeekStart)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].ActualPrice)

	_, err = env.ledger.ResolveForecast(ctx, time.Time{}, 1)
	assert.True(t, IsValidation(err))
}

func TestResolveWeekFromPrices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordForecasts(ctx, []models.ForecastInput{
		env.forecast("2025-10-20", 0, 100),
		env.forecast("2025-10-20", 1, 200),
		env.forecast("2025-10-26", 23, 300),
	})
	require.NoError(t, err)
	_, err = env.store.UpsertPrices(ctx, []models.PriceFact{
		{Date: "2025-10-20", Hour: "00:00", Price: 110},
		{Date: "2025-10-20", Hour: "01:00", Price: 190},
	})
	require.NoError(t, err)

	res, err := env.ledger.ResolveWeekFromPrices(ctx, testWeekStart)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Matched)
	assert.Equal(t, 2, res.Resolved)

	st, err := env.agg.ComputeWeekStatus(ctx, testWeekStart)
	require.NoError(t, err)
	assert.Equal(t, 67, st.CompletionPercentage)

	_, err = env.store.UpsertPrices(ctx, []models.PriceFact{{Date: "2025-10-26", Hour: "23:00", Price: 300}})
	require.NoError(t, err)
	res, err = env.ledger.ResolveWeekFromPrices(ctx, testWeekStart)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resolved)

	summary, err := env.agg.Summary(ctx, testWeekStart)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.TotalPredictions)
	assert.InDelta(t, 20.0/3, summary.MAE, 1e-9)

	_, err = env.ledger.ResolveWeekFromPrices(ctx, "2025-10-13")
	assert.True(t, IsNotFound(err))
}

func TestListForecastsOrdered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.RecordForecasts(ctx, []models.ForecastInput{
		env.forecast("2025-10-22", 4, 3),
		env.forecast("2025-10-20", 0, 1),
		env.forecast("2025-10-21", 23, 2),
	})
	require.NoError(t, err)

	records, err := env.ledger.ListForecasts(ctx, testWeekStart)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, float64(i+1), r.PredictedPrice)
	}

	empty, err := env.ledger.ListForecasts(ctx, "2025-10-13")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRecordForecastStoresCanonicalWeek(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.forecast("2025-10-20", 3, 1500)
	in.WeekStart, in.WeekEnd = testWeekStart+" ", " "+testWeekEnd
	rec, err := env.ledger.RecordForecast(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, testWeekStart, rec.WeekStart)
	assert.Equal(t, testWeekEnd, rec.WeekEnd)

	records, err := env.ledger.ListForecasts(ctx, testWeekStart)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, testWeekEnd, records[0].WeekEnd)

	_, err = env.ledger.RecordForecast(ctx, env.forecast("2025-10-20", 4, 1600))
	assert.NoError(t, err, "canonical and padded weeks are the same week")
}
