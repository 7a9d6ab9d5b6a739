package models

import "time"

// GenerationFact is the hourly generation mix in MWh, one column per source.
type GenerationFact struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	Date           string    `gorm:"column:date;type:varchar(10);not null;uniqueIndex:uq_generation_date_hour,priority:1;index:idx_generation_date" json:"date"`
	Hour           string    `gorm:"column:hour;type:varchar(5);not null;uniqueIndex:uq_generation_date_hour,priority:2" json:"hour"`
	Total          float64   `gorm:"column:total;not null" json:"total"`
	Biomass        float64   `gorm:"column:biomass" json:"biomass"`
	Fueloil        float64   `gorm:"column:fueloil" json:"fueloil"`
	Geothermal     float64   `gorm:"column:geothermal" json:"geothermal"`
	Hydro          float64   `gorm:"column:hydro" json:"hydro"`
	ImportExport   float64   `gorm:"column:import_export" json:"import_export"`
	Lignite        float64   `gorm:"column:lignite" json:"lignite"`
	LNG            float64   `gorm:"column:lng" json:"lng"`
	NaturalGas     float64   `gorm:"column:natural_gas" json:"natural_gas"`
	Naphtha        float64   `gorm:"column:naphtha" json:"naphtha"`
	River          float64   `gorm:"column:river" json:"river"`
	Solar          float64   `gorm:"column:solar" json:"solar"`
	Wind           float64   `gorm:"column:wind" json:"wind"`
	Wasteheat      float64   `gorm:"column:wasteheat" json:"wasteheat"`
	AsphaltiteCoal float64   `gorm:"column:asphaltite_coal" json:"asphaltite_coal"`
	BlackCoal      float64   `gorm:"column:black_coal" json:"black_coal"`
	ImportCoal     float64   `gorm:"column:import_coal" json:"import_coal"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (GenerationFact) TableName() string { return "generation_data" }

func (g GenerationFact) FactKey() (string, string) { return g.Date, g.Hour }

func (g *GenerationFact) SetFactKey(date, hour string) { g.Date, g.Hour = date, hour }

// GenerationColumns lists the value columns overwritten on re-ingestion.
var GenerationColumns = []string{
	"total", "biomass", "fueloil", "geothermal", "hydro", "import_export",
	"lignite", "lng", "natural_gas", "naphtha", "river", "solar", "wind",
	"wasteheat", "asphaltite_coal", "black_coal", "import_coal",
}
