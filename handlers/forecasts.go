package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/samet0demir/enerji-piyasasi/models"
	"github.com/samet0demir/enerji-piyasasi/services"
)

// ForecastHandler serves the forecast ledger and the week views built on it.
type ForecastHandler struct {
	dash   *services.Dashboard
	ledger *services.Ledger
	agg    *services.Aggregator
	loc    *time.Location
}

func NewForecastHandler(dash *services.Dashboard, ledger *services.Ledger, agg *services.Aggregator, loc *time.Location) *ForecastHandler {
	return &ForecastHandler{dash: dash, ledger: ledger, agg: agg, loc: loc}
}

type RecordForecastsRequest struct {
	Forecasts []ForecastPayload `json:"forecasts" binding:"required"`
}

// ForecastPayload accepts forecast_datetime either as RFC 3339 or as a
// zone-less market time such as "2025-10-20 13:00:00".
type ForecastPayload struct {
	WeekStart        string   `json:"week_start"`
	WeekEnd          string   `json:"week_end"`
	ForecastDatetime string   `json:"forecast_datetime"`
	PredictedPrice   *float64 `json:"predicted_price"`
	models.ModelComponents
}

type ResolveForecastRequest struct {
	Datetime    string   `json:"datetime" binding:"required"`
	ActualPrice *float64 `json:"actual_price" binding:"required"`
}

func (h *ForecastHandler) parseDatetime(field, raw string) (time.Time, error) {
	t, err := models.ParseDatetime(raw, h.loc)
	if err != nil {
		return time.Time{}, &services.ValidationError{Field: field, Reason: err.Error()}
	}
	return t, nil
}

// Record handles POST /api/forecasts.
func (h *ForecastHandler) Record(c *gin.Context) {
	var req RecordForecastsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	inputs := make([]models.ForecastInput, 0, len(req.Forecasts))
	for _, p := range req.Forecasts {
		at, err := h.parseDatetime("forecast_datetime", p.ForecastDatetime)
		if err != nil {
			respondError(c, err)
			return
		}
		if p.PredictedPrice == nil {
			respondError(c, &services.ValidationError{Field: "predicted_price", Reason: "required"})
			return
		}
		inputs = append(inputs, models.ForecastInput{
			WeekStart:        p.WeekStart,
			WeekEnd:          p.WeekEnd,
			ForecastDatetime: at,
			PredictedPrice:   *p.PredictedPrice,
			ModelComponents:  p.ModelComponents,
		})
	}
	records, err := h.ledger.RecordForecasts(c.Request.Context(), inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"count": len(records), "forecasts": records})
}

// Resolve handles POST /api/forecasts/resolve.
func (h *ForecastHandler) Resolve(c *gin.Context) {
	var req ResolveForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	at, err := h.parseDatetime("datetime", req.Datetime)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.ledger.ResolveForecast(c.Request.Context(), at, *req.ActualPrice)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// History handles GET /api/forecast-history/:week_start.
func (h *ForecastHandler) History(c *gin.Context) {
	weekStart := c.Param("week_start")
	records, err := h.dash.ForecastHistory(c.Request.Context(), weekStart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"week_start": weekStart, "count": len(records), "forecasts": records})
}

// WeeklyPerformance handles GET /api/weekly-performance?limit=
func (h *ForecastHandler) WeeklyPerformance(c *gin.Context) {
	limit, err := parseLimit(c, DefaultWeeks, MaxWeeks)
	if err != nil {
		respondError(c, err)
		return
	}
	rows, err := h.dash.WeeklyPerformance(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rows), "data": rows})
}

// AvailableWeeks handles GET /api/weeks/available.
func (h *ForecastHandler) AvailableWeeks(c *gin.Context) {
	weeks, err := h.dash.ListAvailableWeeks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(weeks), "weeks": weeks})
}

// WeekDetail handles GET /api/weeks/:week_start/data.
func (h *ForecastHandler) WeekDetail(c *gin.Context) {
	detail, err := h.dash.GetWeekDetail(c.Request.Context(), c.Param("week_start"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ResolveWeek handles POST /api/weeks/:week_start/resolve.
func (h *ForecastHandler) ResolveWeek(c *gin.Context) {
	res, err := h.ledger.ResolveWeekFromPrices(c.Request.Context(), c.Param("week_start"))
	if err != nil {
		respondError(c, err)
		return
	}
	st, err := h.agg.ComputeWeekStatus(c.Request.Context(), c.Param("week_start"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "status": st})
}

// Recompute handles POST /api/weeks/recompute.
func (h *ForecastHandler) Recompute(c *gin.Context) {
	n, err := h.agg.RecomputeCompleteWeeks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recomputed": n})
}

// Dashboard handles GET /api/dashboard.
func (h *ForecastHandler) Dashboard(c *gin.Context) {
	snap, err := h.dash.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Stats handles GET /api/stats.
func (h *ForecastHandler) Stats(c *gin.Context) {
	st, err := h.dash.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
