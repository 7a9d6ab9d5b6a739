package models

import "time"

type WeekState string

const (
	WeekEmpty    WeekState = "empty"
	WeekOpen     WeekState = "open"
	WeekComplete WeekState = "complete"
)

// WeekStatus is the completion state of one week bucket, computed from the
// forecast records on every read.
type WeekStatus struct {
	WeekStart            string     `json:"week_start"`
	WeekEnd              string     `json:"week_end"`
	Total                int        `json:"total_predictions"`
	Completed            int        `json:"completed_predictions"`
	IsComplete           bool       `json:"is_complete"`
	CompletionPercentage int        `json:"completion_percentage"`
	State                WeekState  `json:"state"`
	FirstPrediction      *time.Time `json:"first_prediction"`
	LastPrediction       *time.Time `json:"last_prediction"`
}

type AvailableWeek struct {
	WeekStatus
	Performance *WeeklyPerformanceSummary `json:"performance"`
}

type WeekDetail struct {
	WeekStart   string                    `json:"week_start"`
	WeekEnd     string                    `json:"week_end"`
	Forecasts   []ForecastRecord          `json:"forecasts"`
	Generation  []GenerationFact          `json:"generation"`
	Consumption []ConsumptionFact         `json:"consumption"`
	Performance *WeeklyPerformanceSummary `json:"performance"`
}
