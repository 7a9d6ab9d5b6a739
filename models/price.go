package models

import "time"

type PriceFact struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Date      string    `gorm:"column:date;type:varchar(10);not null;uniqueIndex:uq_mcp_date_hour,priority:1;index:idx_mcp_date" json:"date"`
	Hour      string    `gorm:"column:hour;type:varchar(5);not null;uniqueIndex:uq_mcp_date_hour,priority:2" json:"hour"`
	Price     float64   `gorm:"column:price;not null" json:"price"`
	PriceUSD  *float64  `gorm:"column:price_usd" json:"price_usd"`
	PriceEUR  *float64  `gorm:"column:price_eur" json:"price_eur"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (PriceFact) TableName() string { return "mcp_data" }

func (p PriceFact) FactKey() (string, string) { return p.Date, p.Hour }

func (p *PriceFact) SetFactKey(date, hour string) { p.Date, p.Hour = date, hour }
