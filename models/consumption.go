package models

import "time"

type ConsumptionFact struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Date        string    `gorm:"column:date;type:varchar(10);not null;uniqueIndex:uq_consumption_date_hour,priority:1;index:idx_consumption_date" json:"date"`
	Hour        string    `gorm:"column:hour;type:varchar(5);not null;uniqueIndex:uq_consumption_date_hour,priority:2" json:"hour"`
	Consumption float64   `gorm:"column:consumption;not null" json:"consumption"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (ConsumptionFact) TableName() string { return "consumption_data" }

func (c ConsumptionFact) FactKey() (string, string) { return c.Date, c.Hour }

func (c *ConsumptionFact) SetFactKey(date, hour string) { c.Date, c.Hour = date, hour }
