package epias

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samet0demir/enerji-piyasasi/models"
)

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

type mcpItem struct {
	Date     string   `json:"date"`
	Hour     string   `json:"hour"`
	Price    float64  `json:"price"`
	PriceUSD *float64 `json:"priceUsd"`
	PriceEUR *float64 `json:"priceEur"`
}

type generationItem struct {
	Date           string  `json:"date"`
	Hour           string  `json:"hour"`
	Total          float64 `json:"total"`
	NaturalGas     float64 `json:"naturalGas"`
	DammedHydro    float64 `json:"dammedHydro"`
	Lignite        float64 `json:"lignite"`
	River          float64 `json:"river"`
	ImportCoal     float64 `json:"importCoal"`
	Wind           float64 `json:"wind"`
	Sun            float64 `json:"sun"`
	Fueloil        float64 `json:"fueloil"`
	Geothermal     float64 `json:"geothermal"`
	AsphaltiteCoal float64 `json:"asphaltiteCoal"`
	BlackCoal      float64 `json:"blackCoal"`
	Biomass        float64 `json:"biomass"`
	Naphta         float64 `json:"naphta"`
	LNG            float64 `json:"lng"`
	ImportExport   float64 `json:"importExport"`
	Wasteheat      float64 `json:"wasteheat"`
}

type consumptionItem struct {
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Consumption float64 `json:"consumption"`
}

// factKey turns an item timestamp such as "2025-10-20T00:00:00+03:00" plus
// an optional "HH:MM" label into the store's (date, hour) key in loc.
func factKey(date, hour string, loc *time.Location) (string, string, error) {
	date = strings.TrimSpace(date)
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		local := t.In(loc)
		date = local.Format(models.DateLayout)
		if hour == "" {
			hour = local.Format(models.HourLayout)
		}
	} else if len(date) > len(models.DateLayout) {
		date = date[:len(models.DateLayout)]
	}
	if _, err := models.ParseDate(date); err != nil {
		return "", "", err
	}
	h, err := models.NormalizeHour(hour)
	if err != nil {
		return "", "", err
	}
	return date, h, nil
}

func (c *Client) FetchPrices(ctx context.Context, start, end time.Time) ([]models.PriceFact, error) {
	var resp itemsResponse[mcpItem]
	if err := c.post(ctx, pricePath, c.rangeBody(start, end), &resp); err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	out := make([]models.PriceFact, 0, len(resp.Items))
	for i, it := range resp.Items {
		date, hour, err := factKey(it.Date, it.Hour, c.loc)
		if err != nil {
			return nil, fmt.Errorf("price item %d: %w", i, err)
		}
		out = append(out, models.PriceFact{
			Date:     date,
			Hour:     hour,
			Price:    it.Price,
			PriceUSD: it.PriceUSD,
			PriceEUR: it.PriceEUR,
		})
	}
	return out, nil
}

func (c *Client) FetchGeneration(ctx context.Context, start, end time.Time) ([]models.GenerationFact, error) {
	var resp itemsResponse[generationItem]
	if err := c.post(ctx, generationPath, c.rangeBody(start, end), &resp); err != nil {
		return nil, fmt.Errorf("fetch generation: %w", err)
	}
	out := make([]models.GenerationFact, 0, len(resp.Items))
	for i, it := range resp.Items {
		date, hour, err := factKey(it.Date, it.Hour, c.loc)
		if err != nil {
			return nil, fmt.Errorf("generation item %d: %w", i, err)
		}
		out = append(out, models.GenerationFact{
			Date:           date,
			Hour:           hour,
			Total:          it.Total,
			Biomass:        it.Biomass,
			Fueloil:        it.Fueloil,
			Geothermal:     it.Geothermal,
			Hydro:          it.DammedHydro,
			ImportExport:   it.ImportExport,
			Lignite:        it.Lignite,
			LNG:            it.LNG,
			NaturalGas:     it.NaturalGas,
			Naphtha:        it.Naphta,
			River:          it.River,
			Solar:          it.Sun,
			Wind:           it.Wind,
			Wasteheat:      it.Wasteheat,
			AsphaltiteCoal: it.AsphaltiteCoal,
			BlackCoal:      it.BlackCoal,
			ImportCoal:     it.ImportCoal,
		})
	}
	return out, nil
}

func (c *Client) FetchConsumption(ctx context.Context, start, end time.Time) ([]models.ConsumptionFact, error) {
	var resp itemsResponse[consumptionItem]
	if err := c.post(ctx, consumptionPath, c.rangeBody(start, end), &resp); err != nil {
		return nil, fmt.Errorf("fetch consumption: %w", err)
	}
	out := make([]models.ConsumptionFact, 0, len(resp.Items))
	for i, it := range resp.Items {
		date, hour, err := factKey(it.Date, it.Time, c.loc)
		if err != nil {
			return nil, fmt.Errorf("consumption item %d: %w", i, err)
		}
		out = append(out, models.ConsumptionFact{
			Date:        date,
			Hour:        hour,
			Consumption: it.Consumption,
		})
	}
	return out, nil
}
