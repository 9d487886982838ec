package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/anaqa-user-service/internal/interface/http"
	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
)

// AuthModule mounts /auth. Only registered when token auth is enabled.
type AuthModule struct {
	Handler *handlers.AuthHandler
	Auth    gin.HandlerFunc
	Limit   middleware.LimiterFactory
}

func NewAuthModule(h *handlers.AuthHandler, auth gin.HandlerFunc, limit middleware.LimiterFactory) *AuthModule {
	return &AuthModule{Handler: h, Auth: auth, Limit: limit}
}

func body[T any]() gin.HandlerFunc {
	return middleware.Validate(middleware.Shapes{Body: middleware.Shape[T]()})
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	byIPAndPath := func(n int) gin.HandlerFunc {
		return middleware.RateLimit(m.Limit(n, time.Minute), middleware.KeyByIPAndPath(), nil)
	}

	g := rg.Group("/auth")
	g.POST("/register", byIPAndPath(10), body[handlers.RegisterRequest](), m.Handler.Register)
	g.POST("/login", byIPAndPath(10), body[handlers.LoginRequest](), m.Handler.Login)
	g.POST("/refresh", byIPAndPath(60), m.Handler.Refresh)
	g.POST("/password/forgot", byIPAndPath(5), body[handlers.EmailRequest](), m.Handler.ForgotPassword)
	g.POST("/password/reset", byIPAndPath(30), body[handlers.ResetPasswordRequest](), m.Handler.ResetPassword)
	g.POST("/verify/confirm", byIPAndPath(30), body[handlers.TokenRequest](), m.Handler.VerifyConfirm)

	protected := g.Group("", m.Auth)
	protected.POST("/logout", m.Handler.Logout)
	protected.POST("/verify/init",
		middleware.RateLimit(m.Limit(5, time.Minute), middleware.KeyByUserID(), nil),
		m.Handler.VerifyInit)
}
