package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/anaqa-user-service/internal/application"
	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
	"github.com/oksasatya/anaqa-user-service/pkg/response"
)

// CookieSetter writes and clears the token cookies.
type CookieSetter interface {
	SetPair(c *gin.Context, p helpers.TokenPair)
	Clear(c *gin.Context)
}

type AuthHandler struct {
	Svc     Auth
	Cookies CookieSetter
}

func NewAuthHandler(svc Auth, cookies CookieSetter) *AuthHandler {
	return &AuthHandler{Svc: svc, Cookies: cookies}
}

// session is the login/refresh payload. The refresh token only travels in
// its HttpOnly cookie.
type session struct {
	User            entity.PublicUser `json:"user"`
	AccessToken     string            `json:"accessToken"`
	AccessExpiresAt time.Time         `json:"accessExpiresAt"`
}

func (h *AuthHandler) startSession(c *gin.Context, res application.LoginResult) {
	h.Cookies.SetPair(c, res.Tokens)
	response.OK(c, session{User: res.User, AccessToken: res.Tokens.AccessToken, AccessExpiresAt: res.Tokens.AccessExpiresAt})
}

func meta(c *gin.Context) application.RequestMeta {
	return application.RequestMeta{IP: middleware.ClientIP(c), UserAgent: c.GetHeader("User-Agent")}
}

// Register POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	req := middleware.Body[RegisterRequest](c)
	u, err := h.Svc.CreateUser(c.Request.Context(), "", application.CreateUserInput{
		Email:    string(req.Email),
		Password: req.Password,
		Name:     req.Name,
		Role:     entity.RoleCustomer,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.Created(c, u)
}

// Login POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	req := middleware.Body[LoginRequest](c)
	res, err := h.Svc.Login(c.Request.Context(), string(req.Email), req.Password)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	h.startSession(c, res)
}

// Refresh POST /auth/refresh rotates the refresh cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(helpers.RefreshCookie)
	if token == "" {
		middleware.Fail(c, apperror.Unauthorized("Missing refresh token"))
		return
	}
	res, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.Cookies.Clear(c)
		middleware.Fail(c, err)
		return
	}
	h.startSession(c, res)
}

// Logout POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Svc.Logout(c.Request.Context(), middleware.UserID(c)); err != nil {
		middleware.Fail(c, err)
		return
	}
	h.Cookies.Clear(c)
	response.OK(c, gin.H{"loggedOut": true})
}

// ForgotPassword POST /auth/password/forgot answers the same for every email.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	req := middleware.Body[EmailRequest](c)
	if err := h.Svc.RequestPasswordReset(c.Request.Context(), string(req.Email), meta(c)); err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"message": "If the email is registered, a reset link has been sent"})
}

// ResetPassword POST /auth/password/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	req := middleware.Body[ResetPasswordRequest](c)
	if err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.Password, meta(c)); err != nil {
		middleware.Fail(c, err)
		return
	}
	h.Cookies.Clear(c)
	response.OK(c, gin.H{"reset": true})
}

// VerifyInit POST /auth/verify/init
func (h *AuthHandler) VerifyInit(c *gin.Context) {
	already, err := h.Svc.RequestEmailVerification(c.Request.Context(), middleware.UserID(c), meta(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	if already {
		response.OK(c, gin.H{"alreadyVerified": true})
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"sent": true}, nil)
}

// VerifyConfirm POST /auth/verify/confirm
func (h *AuthHandler) VerifyConfirm(c *gin.Context) {
	req := middleware.Body[TokenRequest](c)
	u, err := h.Svc.ConfirmEmailVerification(c.Request.Context(), req.Token)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, u)
}
