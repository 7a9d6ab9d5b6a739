package models

import "time"

type WeeklyPerformanceSummary struct {
	ID               uint      `gorm:"primaryKey" json:"-"`
	WeekStart        string    `gorm:"column:week_start;type:varchar(10);not null;uniqueIndex:uq_weekly_perf_week" json:"week_start"`
	WeekEnd          string    `gorm:"column:week_end;type:varchar(10);not null" json:"week_end"`
	MAPE             float64   `gorm:"column:mape;not null" json:"mape"`
	MAE              float64   `gorm:"column:mae;not null" json:"mae"`
	RMSE             float64   `gorm:"column:rmse;not null" json:"rmse"`
	TotalPredictions int       `gorm:"column:total_predictions;not null" json:"total_predictions"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (WeeklyPerformanceSummary) TableName() string { return "weekly_performance" }

// PerformanceMetrics are accuracy statistics over the resolved records of a week.
type PerformanceMetrics struct {
	MAPE    float64 `json:"mape"`
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
	Samples int     `json:"total_predictions"`
}
