package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/samet0demir/enerji-piyasasi/models"
	"github.com/samet0demir/enerji-piyasasi/services"
)

const (
	DefaultWeeks = 8
	MaxWeeks     = 520

	DefaultRecentDays = 7
	MaxFactRows       = 100000
)

// parseLimit reads ?limit. A missing value yields def; zero or garbage is a
// validation error, and anything above max is clamped.
func parseLimit(c *gin.Context, def, max int) (int, error) {
	return parsePositive(c, "limit", def, max)
}

func parseDays(c *gin.Context, def int) (int, error) {
	return parsePositive(c, "days", def, 0)
}

func parsePositive(c *gin.Context, name string, def, max int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &services.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a positive integer", raw)}
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

func parseKind(c *gin.Context) (models.FactKind, error) {
	kind, err := models.ParseFactKind(c.Param("kind"))
	if err != nil {
		return "", &services.ValidationError{Field: "kind", Reason: err.Error()}
	}
	return kind, nil
}

// DateRange is the startDate/endDate pair accepted by range queries.
type DateRange struct {
	StartDate string `form:"startDate" json:"startDate"`
	EndDate   string `form:"endDate" json:"endDate"`
}

func parseDateRange(c *gin.Context) DateRange {
	return DateRange{StartDate: c.Query("startDate"), EndDate: c.Query("endDate")}
}
