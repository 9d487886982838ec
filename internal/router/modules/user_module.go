package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	handlers "github.com/oksasatya/anaqa-user-service/internal/interface/http"
	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
)

// UserModule mounts /users.
// Self-service: GET/PATCH/DELETE /users/me, PUT /users/me/password
// Admin: everything else
type UserModule struct {
	Handler *handlers.UserHandler
	Auth    gin.HandlerFunc
	Limit   middleware.LimiterFactory
}

func NewUserModule(h *handlers.UserHandler, auth gin.HandlerFunc, limit middleware.LimiterFactory) *UserModule {
	return &UserModule{Handler: h, Auth: auth, Limit: limit}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	id := middleware.Shape[handlers.IDParams]()

	g := rg.Group("/users", m.Auth,
		middleware.RateLimit(m.Limit(120, time.Minute), middleware.KeyByUserID(), nil))

	g.GET("/me", m.Handler.Me)
	g.PATCH("/me", body[handlers.UpdateSelfRequest](), m.Handler.UpdateMe)
	g.DELETE("/me", m.Handler.DeleteMe)
	g.PUT("/me/password", body[handlers.ChangePasswordRequest](), m.Handler.ChangePassword)

	admin := g.Group("", middleware.RequireRole(string(entity.RoleAdmin)))
	admin.GET("", middleware.Validate(middleware.Shapes{Query: middleware.Shape[handlers.ListUsersQuery]()}), m.Handler.List)
	admin.POST("", body[handlers.CreateUserRequest](), m.Handler.Create)
	admin.GET("/stats", m.Handler.Stats)
	admin.GET("/search", middleware.Validate(middleware.Shapes{Query: middleware.Shape[handlers.SearchQuery]()}), m.Handler.Search)
	admin.GET("/:id", middleware.Validate(middleware.Shapes{Params: id}), m.Handler.Get)
	admin.PATCH("/:id", middleware.Validate(middleware.Shapes{Body: middleware.Shape[handlers.UpdateUserRequest](), Params: id}), m.Handler.Update)
	admin.DELETE("/:id", middleware.Validate(middleware.Shapes{Params: id}), m.Handler.Delete)
	admin.POST("/:id/verify-email", middleware.Validate(middleware.Shapes{Params: id}), m.Handler.VerifyEmail)
}
