package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/response"
	"github.com/oksasatya/anaqa-user-service/pkg/validation"
)

const (
	avatarField    = "avatar"
	MaxAvatarBytes = 5 << 20
)

var avatarTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

type ProfileHandler struct {
	Svc Profiles
}

func NewProfileHandler(svc Profiles) *ProfileHandler {
	return &ProfileHandler{Svc: svc}
}

// Get GET /profile
func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.Svc.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, p)
}

// Save PUT /profile creates or replaces the caller's profile.
func (h *ProfileHandler) Save(c *gin.Context) {
	in := middleware.Body[ProfileRequest](c).toEntity()
	p, err := h.Svc.SaveProfile(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, p)
}

// Delete DELETE /profile
func (h *ProfileHandler) Delete(c *gin.Context) {
	if err := h.Svc.DeleteProfile(c.Request.Context(), middleware.UserID(c)); err != nil {
		middleware.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddAddress POST /profile/addresses
func (h *ProfileHandler) AddAddress(c *gin.Context) {
	a := middleware.Body[AddressRequest](c).toEntity()
	p, err := h.Svc.AddAddress(c.Request.Context(), middleware.UserID(c), a)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.Created(c, p)
}

// RemoveAddress DELETE /profile/addresses/:addressId
func (h *ProfileHandler) RemoveAddress(c *gin.Context) {
	id := middleware.Params[AddressParams](c).AddressID
	p, err := h.Svc.RemoveAddress(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, p)
}

// SetDefaultAddress PUT /profile/addresses/:addressId/default
func (h *ProfileHandler) SetDefaultAddress(c *gin.Context) {
	id := middleware.Params[AddressParams](c).AddressID
	p, err := h.Svc.SetDefaultAddress(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, p)
}

// UploadAvatar POST /profile/avatar takes a multipart "avatar" image.
// The content type is sniffed from the bytes, the client's header is ignored.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxAvatarBytes+1<<20)

	fh, err := c.FormFile(avatarField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.Fail(c, avatarInvalid("must be at most 5MB"))
			return
		}
		middleware.Fail(c, avatarInvalid("is required"))
		return
	}
	if fh.Size > MaxAvatarBytes {
		middleware.Fail(c, avatarInvalid("must be at most 5MB"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		middleware.Fail(c, apperror.Internal(err))
		return
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		middleware.Fail(c, apperror.Internal(err))
		return
	}
	if !mimetype.EqualsAny(mt.String(), avatarTypes...) {
		middleware.Fail(c, avatarInvalid("must be a JPEG, PNG, WebP or GIF image"))
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		middleware.Fail(c, apperror.Internal(err))
		return
	}

	p, err := h.Svc.UploadAvatar(c.Request.Context(), middleware.UserID(c), fh.Filename, mt.String(), f)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	response.OK(c, p)
}

func avatarInvalid(msg string) error {
	return apperror.Validation("Validation failed", validation.FieldError{Field: avatarField, Message: msg})
}
