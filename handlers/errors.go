package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/samet0demir/enerji-piyasasi/services"
)

// ErrSourceUnavailable is returned when an ingestion run is requested but no
// market data source is configured.
var ErrSourceUnavailable = errors.New("market data source is not configured")

func statusOf(err error) int {
	switch {
	case services.IsValidation(err):
		return http.StatusBadRequest
	case services.IsNotFound(err):
		return http.StatusNotFound
	case services.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", status).
			Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
