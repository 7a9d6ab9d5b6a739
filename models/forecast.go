package models

import "time"

// ForecastRecord is one hourly price prediction. Actual, error and
// resolved_at stay NULL until the observed price is known.
type ForecastRecord struct {
	ID               uint       `gorm:"primaryKey" json:"-"`
	WeekStart        string     `gorm:"column:week_start;type:varchar(10);not null;uniqueIndex:uq_forecast_week_datetime,priority:1;index:idx_forecast_week,priority:1" json:"week_start"`
	WeekEnd          string     `gorm:"column:week_end;type:varchar(10);not null;index:idx_forecast_week,priority:2" json:"week_end"`
	ForecastDatetime time.Time  `gorm:"column:forecast_datetime;not null;uniqueIndex:uq_forecast_week_datetime,priority:2;index:idx_forecast_datetime" json:"forecast_datetime"`
	PredictedPrice   float64    `gorm:"column:predicted_price;not null" json:"predicted_price"`
	ActualPrice      *float64   `gorm:"column:actual_price" json:"actual_price"`
	AbsoluteError    *float64   `gorm:"column:absolute_error" json:"absolute_error"`
	PercentageError  *float64   `gorm:"column:percentage_error" json:"percentage_error"`
	ProphetComponent *float64   `gorm:"column:prophet_component" json:"prophet_component"`
	XGBoostComponent *float64   `gorm:"column:xgboost_component" json:"xgboost_component"`
	LSTMComponent    *float64   `gorm:"column:lstm_component" json:"lstm_component"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ResolvedAt       *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

func (ForecastRecord) TableName() string { return "forecast_history" }

func (r ForecastRecord) Resolved() bool { return r.ActualPrice != nil }

// ModelComponents carries the per-model contributions of an ensemble forecast.
type ModelComponents struct {
	Prophet *float64 `json:"prophet_component"`
	XGBoost *float64 `json:"xgboost_component"`
	LSTM    *float64 `json:"lstm_component"`
}

type ForecastInput struct {
	WeekStart        string          `json:"week_start"`
	WeekEnd          string          `json:"week_end"`
	ForecastDatetime time.Time       `json:"forecast_datetime"`
	PredictedPrice   float64         `json:"predicted_price"`
	ModelComponents
}

type ResolveResult struct {
	Matched  int      `json:"matched"`
	Resolved int      `json:"resolved"`
	Weeks    []string `json:"weeks"`
}
