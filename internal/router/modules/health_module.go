package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/anaqa-user-service/internal/interface/http"
)

// HealthModule is mounted at the root, outside the API prefix and its limits.
type HealthModule struct {
	Handler *handlers.HealthHandler
}

func NewHealthModule(h *handlers.HealthHandler) *HealthModule {
	return &HealthModule{Handler: h}
}

func (m *HealthModule) Register(rg *gin.RouterGroup) {
	rg.GET("/health", m.Handler.Health)
	rg.GET("/health/live", m.Handler.Live)
}
