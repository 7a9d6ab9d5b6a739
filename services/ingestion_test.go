package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samet0demir/enerji-piyasasi/models"
)

type fakeSource struct {
	failGeneration error
	calls          map[models.FactKind][][2]string
}

func (f *fakeSource) record(kind models.FactKind, start, end time.Time) {
	if f.calls == nil {
		f.calls = make(map[models.FactKind][][2]string)
	}
	f.calls[kind] = append(f.calls[kind], [2]string{start.Format(models.DateLayout), end.Format(models.DateLayout)})
}

func (f *fakeSource) FetchPrices(_ context.Context, start, end time.Time) ([]models.PriceFact, error) {
	f.record(models.KindPrice, start, end)
	var out []models.PriceFact
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, models.PriceFact{Date: d.Format(models.DateLayout), Hour: "00:00", Price: 2000})
	}
	return out, nil
}

func (f *fakeSource) FetchGeneration(_ context.Context, start, end time.Time) ([]models.GenerationFact, error) {
	f.record(models.KindGeneration, start, end)
	if f.failGeneration != nil {
		return nil, f.failGeneration
	}
	return []models.GenerationFact{{Date: start.Format(models.DateLayout), Hour: "00:00", Total: 1}}, nil
}

func (f *fakeSource) FetchConsumption(_ context.Context, start, end time.Time) ([]models.ConsumptionFact, error) {
	f.record(models.KindConsumption, start, end)
	return []models.ConsumptionFact{{Date: start.Format(models.DateLayout), Hour: "00:00", Consumption: 1}}, nil
}

func TestSplitDays(t *testing.T) {
	loc := marketLoc(t)
	day := func(s string) time.Time {
		d, err := time.ParseInLocation(models.DateLayout, s, loc)
		require.NoError(t, err)
		return d
	}

	chunks := splitDays(day("2025-01-01"), day("2025-03-01"), 30)
	require.Len(t, chunks, 2)
	assert.Equal(t, "2025-01-30", chunks[0].end.Format(models.DateLayout))
	assert.Equal(t, "2025-01-31", chunks[1].start.Format(models.DateLayout))
	assert.Equal(t, "2025-03-01", chunks[1].end.Format(models.DateLayout))

	single := splitDays(day("2025-01-01"), day("2025-01-01"), 365)
	require.Len(t, single, 1)
	assert.True(t, single[0].start.Equal(single[0].end))
}

func TestIngestorIsolatesKindFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	src := &fakeSource{failGeneration: errors.New("upstream 502")}
	ing := NewIngestor(src, env.store, nil, env.loc)

	report, err := ing.Run(ctx, IngestRequest{StartDate: "2025-01-01", EndDate: "2025-02-14"})
	require.NoError(t, err)
	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)
	require.Len(t, report.Results, 3)

	byKind := make(map[models.FactKind]KindResult)
	for _, r := range report.Results {
		byKind[r.Kind] = r
	}
	assert.Equal(t, 45, byKind[models.KindPrice].Inserted)
	assert.Equal(t, 1, byKind[models.KindPrice].Chunks)
	assert.Contains(t, byKind[models.KindGeneration].Error, "upstream 502")
	assert.Zero(t, byKind[models.KindGeneration].Inserted)
	assert.Equal(t, 1, byKind[models.KindConsumption].Inserted)
	assert.Error(t, report.Err())

	counts, err := env.store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(45), counts.Price)
	assert.Zero(t, counts.Generation)
	assert.Equal(t, int64(1), counts.Consumption)
}

func TestIngestorChunksGeneration(t *testing.T) {
	env := newTestEnv(t)
	src := &fakeSource{}
	ing := NewIngestor(src, env.store, nil, env.loc)

	report, err := ing.Run(context.Background(), IngestRequest{
		StartDate: "2025-01-01",
		EndDate:   "2025-02-14",
		Kinds:     []models.FactKind{models.KindGeneration},
	})
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Len(t, report.Results, 1)
	assert.Equal(t, 2, report.Results[0].Chunks)
	assert.Equal(t, 2, report.Results[0].Inserted)
	assert.Equal(t, [][2]string{{"2025-01-01", "2025-01-30"}, {"2025-01-31", "2025-02-14"}}, src.calls[models.KindGeneration])
	assert.Empty(t, src.calls[models.KindPrice])
}

func TestIngestorValidatesRequest(t *testing.T) {
	env := newTestEnv(t)
	ing := NewIngestor(&fakeSource{}, env.store, nil, env.loc)

	_, err := ing.Run(context.Background(), IngestRequest{StartDate: "2025-01-01"})
	assert.True(t, IsValidation(err))

	_, err = ing.Run(context.Background(), IngestRequest{StartDate: "2025-01-01", EndDate: "2025-01-02", Kinds: []models.FactKind{"weather"}})
	assert.True(t, IsValidation(err))
}

func TestIngestorStopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ing := NewIngestor(&fakeSource{}, env.store, nil, env.loc)

	report, err := ing.Run(ctx, IngestRequest{StartDate: "2025-01-01", EndDate: "2025-01-02"})
	require.NoError(t, err)
	assert.ErrorIs(t, report.Err(), context.Canceled)
}
