package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/samet0demir/enerji-piyasasi/models"
)

const (
	testWeekStart = "2025-10-20"
	testWeekEnd   = "2025-10-26"
)

// newTestDB opens a private in-memory database. A single connection keeps
// every query on the same memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func marketLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	return loc
}

type testEnv struct {
	db     *gorm.DB
	loc    *time.Location
	store  *FactStore
	agg    *Aggregator
	ledger *Ledger
	dash   *Dashboard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	loc := marketLoc(t)
	store := NewFactStore(db, loc)
	agg := NewAggregator(db, nil)
	ledger := NewLedger(db, agg, nil, loc)
	return &testEnv{
		db:     db,
		loc:    loc,
		store:  store,
		agg:    agg,
		ledger: ledger,
		dash:   NewDashboard(store, ledger, agg, loc),
	}
}

// hourAt returns the instant of date hh:00 in market time.
func (e *testEnv) hourAt(date string, hour int) time.Time {
	d, err := time.ParseInLocation(models.DateLayout, date, e.loc)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}

func (e *testEnv) forecast(date string, hour int, predicted float64) models.ForecastInput {
	return models.ForecastInput{
		WeekStart:        testWeekStart,
		WeekEnd:          testWeekEnd,
		ForecastDatetime: e.hourAt(date, hour),
		PredictedPrice:   predicted,
	}
}

func ptr(f float64) *float64 { return &f }
