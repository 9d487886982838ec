package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
)

// DebugModule exposes expvar, only when DEBUG_METRICS_ENABLED is set.
type DebugModule struct {
	Limit middleware.LimiterFactory
}

func NewDebugModule(limit middleware.LimiterFactory) *DebugModule {
	return &DebugModule{Limit: limit}
}

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rl := middleware.RateLimit(m.Limit(120, time.Minute), middleware.KeyByIP(), nil)
	rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
}
