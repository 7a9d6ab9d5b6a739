package models

import "time"

type ForecastPoint struct {
	Datetime  time.Time `json:"datetime"`
	Predicted float64   `json:"predicted"`
	Actual    *float64  `json:"actual"`
}

type ComparisonPoint struct {
	Datetime     time.Time `json:"datetime"`
	Predicted    float64   `json:"predicted"`
	Actual       float64   `json:"actual"`
	Error        float64   `json:"error"`
	ErrorPercent *float64  `json:"error_percent"`
}

type CurrentWeek struct {
	Start     string          `json:"start"`
	End       string          `json:"end"`
	Forecasts []ForecastPoint `json:"forecasts"`
}

// DashboardSnapshot is the landing page payload: this week's forecasts, how
// last week went, and the recent accuracy trend.
type DashboardSnapshot struct {
	GeneratedAt         time.Time                  `json:"generated_at"`
	CurrentWeek         CurrentWeek                `json:"current_week"`
	LastWeekPerformance *WeeklyPerformanceSummary  `json:"last_week_performance"`
	LastWeekComparison  []ComparisonPoint          `json:"last_week_comparison"`
	HistoricalTrend     []WeeklyPerformanceSummary `json:"historical_trend"`
}

type Stats struct {
	Counts        FactCounts `json:"counts"`
	DaysOfData    int64      `json:"days_of_data"`
	Weeks         int        `json:"weeks"`
	CompleteWeeks int        `json:"complete_weeks"`
	LastUpdated   time.Time  `json:"last_updated"`
}
