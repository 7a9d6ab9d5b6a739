package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/samet0demir/enerji-piyasasi/services"
)

type HealthHandler struct {
	db     *gorm.DB
	events *services.EventBus
}

func NewHealthHandler(db *gorm.DB, events *services.EventBus) *HealthHandler {
	return &HealthHandler{db: db, events: events}
}

// Health reports DOWN when the database does not answer a ping. Redis only
// feeds the live channel, so its state is reported without failing the check.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := gin.H{"status": "UP", "database": "UP", "redis": "DISABLED"}
	status := http.StatusOK

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		resp["status"], resp["database"] = "DOWN", "DOWN"
		status = http.StatusServiceUnavailable
	}

	if h.events.Available() {
		resp["redis"] = "UP"
		if err := h.events.Ping(ctx); err != nil {
			resp["redis"] = "DOWN"
		}
	}
	c.JSON(status, resp)
}
