package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/anaqa-user-service/internal/application"
	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
	"github.com/oksasatya/anaqa-user-service/pkg/response"
)

type UserHandler struct {
	Svc     Users
	Cookies CookieSetter
}

func NewUserHandler(svc Users, cookies CookieSetter) *UserHandler {
	return &UserHandler{Svc: svc, Cookies: cookies}
}

func listMeta[T any](p application.Page[T]) response.ListMetadata {
	return response.ListMetadata{Page: p.Page, Limit: p.Limit, Total: p.Total, TotalPages: p.TotalPages}
}

// Me GET /users/me
func (h *UserHandler) Me(c *gin.Context) {
	h.get(c, middleware.UserID(c))
}

// UpdateMe PATCH /users/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	uid := middleware.UserID(c)
	u, err := h.Svc.UpdateUser(c.Request.Context(), uid, uid, middleware.Body[UpdateSelfRequest](c).patch())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, u)
}

// DeleteMe DELETE /users/me closes the caller's account.
func (h *UserHandler) DeleteMe(c *gin.Context) {
	uid := middleware.UserID(c)
	if err := h.Svc.DeleteUser(c.Request.Context(), uid, uid); err != nil {
		middleware.Fail(c, err)
		return
	}
	if h.Cookies != nil {
		h.Cookies.Clear(c)
	}
	c.Status(http.StatusNoContent)
}

// ChangePassword PUT /users/me/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	req := middleware.Body[ChangePasswordRequest](c)
	err := h.Svc.ChangePassword(c.Request.Context(), middleware.UserID(c), req.CurrentPassword, req.NewPassword, meta(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	if h.Cookies != nil {
		h.Cookies.Clear(c)
	}
	response.OK(c, gin.H{"changed": true})
}

// List GET /users
func (h *UserHandler) List(c *gin.Context) {
	q := middleware.Query[ListUsersQuery](c)
	page, err := h.Svc.ListUsers(c.Request.Context(), q.Page, q.Limit, q.filter())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.List(c, page.Items, listMeta(page))
}

// Create POST /users
func (h *UserHandler) Create(c *gin.Context) {
	req := middleware.Body[CreateUserRequest](c)
	u, err := h.Svc.CreateUser(c.Request.Context(), middleware.UserID(c), application.CreateUserInput{
		Email:    string(req.Email),
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.Created(c, u)
}

// Stats GET /users/stats
func (h *UserHandler) Stats(c *gin.Context) {
	counts, err := h.Svc.CountByRole(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	response.OK(c, gin.H{"byRole": counts, "total": total})
}

// Search GET /users/search
func (h *UserHandler) Search(c *gin.Context) {
	q := middleware.Query[SearchQuery](c)
	page, err := h.Svc.SearchUsers(c.Request.Context(), q.Q, q.Page, q.Limit)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.List(c, page.Items, listMeta(page))
}

// Get GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	h.get(c, middleware.Params[IDParams](c).ID)
}

func (h *UserHandler) get(c *gin.Context, id string) {
	u, err := h.Svc.GetUser(c.Request.Context(), id)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, u)
}

// Update PATCH /users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id := middleware.Params[IDParams](c).ID
	u, err := h.Svc.UpdateUser(c.Request.Context(), middleware.UserID(c), id, middleware.Body[UpdateUserRequest](c).patch())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, u)
}

// Delete DELETE /users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id := middleware.Params[IDParams](c).ID
	if err := h.Svc.DeleteUser(c.Request.Context(), middleware.UserID(c), id); err != nil {
		middleware.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// VerifyEmail POST /users/:id/verify-email
func (h *UserHandler) VerifyEmail(c *gin.Context) {
	id := middleware.Params[IDParams](c).ID
	u, err := h.Svc.VerifyEmail(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, u)
}
