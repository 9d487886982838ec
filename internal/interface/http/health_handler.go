package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/postgres"
)

// DatabaseStatus is satisfied by *postgres.Manager.
type DatabaseStatus interface {
	IsHealthy() bool
	State() postgres.State
}

type HealthHandler struct {
	DB      DatabaseStatus
	started time.Time
	now     func() time.Time
}

func NewHealthHandler(db DatabaseStatus) *HealthHandler {
	return &HealthHandler{DB: db, started: time.Now(), now: time.Now}
}

type healthBody struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
	Database  string    `json:"database"`
}

// Health GET /health always answers 200 while the process serves.
func (h *HealthHandler) Health(c *gin.Context) {
	now := h.now()
	db := h.DB.State().String()
	if h.DB.State() == postgres.StateConnected && !h.DB.IsHealthy() {
		db = "unreachable"
	}
	c.JSON(http.StatusOK, healthBody{
		Status:    "OK",
		Timestamp: now.UTC(),
		Uptime:    now.Sub(h.started).Seconds(),
		Database:  db,
	})
}

// Live GET /health/live is 503 while the database is unhealthy.
func (h *HealthHandler) Live(c *gin.Context) {
	if !h.DB.IsHealthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "UNAVAILABLE"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
