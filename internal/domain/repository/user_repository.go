package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
)

// ErrDuplicateEmail is returned by Create/Update when the unique email index rejects a write.
var ErrDuplicateEmail = errors.New("duplicate email")

// UserFilter narrows FindAll. Zero values mean "no constraint".
type UserFilter struct {
	Role            entity.Role
	IsEmailVerified *bool
	Search          string // case-insensitive substring over name and email
}

// UserPage is one page of FindAll results with the total match count.
type UserPage struct {
	Items []*entity.User
	Total int64
}

// UserRepository defines the interface for user-related database operations.
// Find* lookups return (nil, nil) when nothing matched; *OrFail variants and
// Delete return a NotFound application error instead.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User, password string) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByIDOrFail(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByRefreshToken(ctx context.Context, digest string) (*entity.User, error)
	FindByResetToken(ctx context.Context, digest string, now time.Time) (*entity.User, error)
	FindAll(ctx context.Context, f UserFilter, page, limit int) (UserPage, error)
	Update(ctx context.Context, id string, patch entity.UserPatch) (*entity.User, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, email string) (bool, error)
	CountByRole(ctx context.Context, role entity.Role) (int64, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetRefreshToken(ctx context.Context, id, digest string) error
	SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error
	// ResetPassword stores a new password and clears reset and refresh tokens.
	ResetPassword(ctx context.Context, id, password string) error
}
