package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samet0demir/enerji-piyasasi/models"
	"github.com/samet0demir/enerji-piyasasi/services"
)

type FactsHandler struct {
	dash   *services.Dashboard
	store  *services.FactStore
	events *services.EventBus
}

func NewFactsHandler(dash *services.Dashboard, store *services.FactStore, events *services.EventBus) *FactsHandler {
	return &FactsHandler{dash: dash, store: store, events: events}
}

type IngestFactsRequest struct {
	Rows json.RawMessage `json:"rows"`
}

// valueFields names the measurement each row of a kind must carry.
var valueFields = map[models.FactKind]string{
	models.KindPrice:       "price",
	models.KindGeneration:  "total",
	models.KindConsumption: "consumption",
}

func decodeStrict(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeRows rejects fields the kind does not have and rows without the
// kind's value field.
func decodeRows(kind models.FactKind, raw json.RawMessage) (services.FactSet, error) {
	set := services.FactSet{Kind: kind}
	if len(raw) == 0 {
		return set, &services.ValidationError{Field: "rows", Reason: "required"}
	}
	var err error
	switch kind {
	case models.KindPrice:
		err = decodeStrict(raw, &set.Prices)
	case models.KindGeneration:
		err = decodeStrict(raw, &set.Generation)
	case models.KindConsumption:
		err = decodeStrict(raw, &set.Consumption)
	}
	if err != nil {
		return set, &services.ValidationError{Field: "rows", Reason: err.Error()}
	}

	var present []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return set, &services.ValidationError{Field: "rows", Reason: err.Error()}
	}
	field := valueFields[kind]
	for i, row := range present {
		if v, ok := row[field]; !ok || string(v) == "null" {
			return set, &services.ValidationError{Field: fmt.Sprintf("rows[%d].%s", i, field), Reason: "required"}
		}
	}
	return set, nil
}

// List handles GET /api/facts/:kind?startDate=&endDate=&limit=
func (h *FactsHandler) List(c *gin.Context) {
	kind, err := parseKind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := parseLimit(c, MaxFactRows, MaxFactRows)
	if err != nil {
		respondError(c, err)
		return
	}
	r := parseDateRange(c)
	set, err := h.dash.Facts(c.Request.Context(), kind, r.StartDate, r.EndDate)
	if err != nil {
		respondError(c, err)
		return
	}
	page := set.Head(limit)
	c.JSON(http.StatusOK, gin.H{
		"kind":      kind,
		"count":     page.Len(),
		"total":     set.Len(),
		"dateRange": r,
		"data":      page.Rows(),
	})
}

// Latest handles GET /api/facts/:kind/latest?days=
func (h *FactsHandler) Latest(c *gin.Context) {
	kind, err := parseKind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	h.latest(c, kind, DefaultRecentDays, "data")
}

func (h *FactsHandler) latest(c *gin.Context, kind models.FactKind, defDays int, key string) {
	days, err := parseDays(c, defDays)
	if err != nil {
		respondError(c, err)
		return
	}
	set, err := h.dash.LatestFacts(c.Request.Context(), kind, days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "days": days, "count": set.Len(), key: set.Rows()})
}

// Ingest handles PUT and POST /api/facts/:kind with {"rows": [...]}.
func (h *FactsHandler) Ingest(c *gin.Context) {
	kind, err := parseKind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req IngestFactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	set, err := decodeRows(kind, req.Rows)
	if err != nil {
		respondError(c, err)
		return
	}
	n, err := h.store.UpsertFacts(c.Request.Context(), set)
	if err != nil {
		respondError(c, err)
		return
	}
	if n > 0 {
		h.events.Notify(c.Request.Context(), services.EventFactsIngested, gin.H{"kind": kind, "inserted": n})
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "inserted": n})
}

// PriceAt handles GET /api/prices/:date/:hour.
func (h *FactsHandler) PriceAt(c *gin.Context) {
	p, err := h.store.PriceAt(c.Request.Context(), c.Param("date"), c.Param("hour"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// LegacyLatestPrices handles GET /api/latest: prices of the last two days.
func (h *FactsHandler) LegacyLatestPrices(c *gin.Context) {
	h.latest(c, models.KindPrice, 2, "mcp")
}

// LegacyQueryPrices handles GET /api/mcp/query.
func (h *FactsHandler) LegacyQueryPrices(c *gin.Context) {
	c.Params = append(c.Params, gin.Param{Key: "kind", Value: models.KindPrice.String()})
	h.List(c)
}

func (h *FactsHandler) LegacyRecentGeneration(c *gin.Context) {
	h.latest(c, models.KindGeneration, DefaultRecentDays, "generation")
}

func (h *FactsHandler) LegacyRecentConsumption(c *gin.Context) {
	h.latest(c, models.KindConsumption, DefaultRecentDays, "consumption")
}
