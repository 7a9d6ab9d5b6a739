package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samet0demir/enerji-piyasasi/services"
)

type IngestHandler struct {
	ingestor *services.Ingestor
}

// NewIngestHandler accepts a nil ingestor; runs are then refused with 503.
func NewIngestHandler(ingestor *services.Ingestor) *IngestHandler {
	return &IngestHandler{ingestor: ingestor}
}

// Fetch handles POST /api/data/fetch with {startDate, endDate, kinds}. The
// response is 200 with every kind stored and 207 when some kind failed.
func (h *IngestHandler) Fetch(c *gin.Context) {
	if h.ingestor == nil {
		respondError(c, ErrSourceUnavailable)
		return
	}
	var req services.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	report, err := h.ingestor.Run(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if report.Err() != nil {
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}
