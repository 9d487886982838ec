package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/anaqa-user-service/internal/interface/http"
	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
)

// ProfileModule mounts the caller's /profile sub-resource.
type ProfileModule struct {
	Handler *handlers.ProfileHandler
	Auth    gin.HandlerFunc
	Limit   middleware.LimiterFactory
}

func NewProfileModule(h *handlers.ProfileHandler, auth gin.HandlerFunc, limit middleware.LimiterFactory) *ProfileModule {
	return &ProfileModule{Handler: h, Auth: auth, Limit: limit}
}

func (m *ProfileModule) Register(rg *gin.RouterGroup) {
	address := middleware.Validate(middleware.Shapes{Params: middleware.Shape[handlers.AddressParams]()})

	g := rg.Group("/profile", m.Auth,
		middleware.RateLimit(m.Limit(120, time.Minute), middleware.KeyByUserID(), nil))

	g.GET("", m.Handler.Get)
	g.PUT("", body[handlers.ProfileRequest](), m.Handler.Save)
	g.DELETE("", m.Handler.Delete)
	g.POST("/addresses", body[handlers.AddressRequest](), m.Handler.AddAddress)
	g.DELETE("/addresses/:addressId", address, m.Handler.RemoveAddress)
	g.PUT("/addresses/:addressId/default", address, m.Handler.SetDefaultAddress)
	g.POST("/avatar",
		middleware.RateLimit(m.Limit(10, time.Minute), middleware.KeyByUserID(), nil),
		m.Handler.UploadAvatar)
}
