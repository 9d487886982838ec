package handlers

import (
	"context"
	"io"

	"github.com/oksasatya/anaqa-user-service/internal/application"
	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	repo "github.com/oksasatya/anaqa-user-service/internal/domain/repository"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/search"
)

// Users is the part of the user service the HTTP layer drives.
// *application.UserService implements it.
type Users interface {
	CreateUser(ctx context.Context, actorID string, in application.CreateUserInput) (entity.PublicUser, error)
	GetUser(ctx context.Context, id string) (entity.PublicUser, error)
	UpdateUser(ctx context.Context, actorID, id string, patch entity.UserPatch) (entity.PublicUser, error)
	DeleteUser(ctx context.Context, actorID, id string) error
	VerifyEmail(ctx context.Context, actorID, id string) (entity.PublicUser, error)
	ListUsers(ctx context.Context, page, limit int, f repo.UserFilter) (application.Page[entity.PublicUser], error)
	CountByRole(ctx context.Context) (map[entity.Role]int64, error)
	SearchUsers(ctx context.Context, q string, page, limit int) (application.Page[search.UserDoc], error)
	ChangePassword(ctx context.Context, userID, current, next string, meta application.RequestMeta) error
}

// Auth is the authentication side of the user service.
type Auth interface {
	CreateUser(ctx context.Context, actorID string, in application.CreateUserInput) (entity.PublicUser, error)
	Login(ctx context.Context, email, password string) (application.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (application.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	RequestPasswordReset(ctx context.Context, email string, meta application.RequestMeta) error
	ResetPassword(ctx context.Context, token, newPassword string, meta application.RequestMeta) error
	RequestEmailVerification(ctx context.Context, userID string, meta application.RequestMeta) (bool, error)
	ConfirmEmailVerification(ctx context.Context, token string) (entity.PublicUser, error)
}

// Profiles is implemented by *application.ProfileService.
type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*entity.Profile, error)
	SaveProfile(ctx context.Context, userID string, in entity.Profile) (*entity.Profile, error)
	DeleteProfile(ctx context.Context, userID string) error
	AddAddress(ctx context.Context, userID string, a entity.Address) (*entity.Profile, error)
	RemoveAddress(ctx context.Context, userID, addressID string) (*entity.Profile, error)
	SetDefaultAddress(ctx context.Context, userID, addressID string) (*entity.Profile, error)
	UploadAvatar(ctx context.Context, userID, filename, contentType string, r io.Reader) (*entity.Profile, error)
}

var (
	_ Users    = (*application.UserService)(nil)
	_ Auth     = (*application.UserService)(nil)
	_ Profiles = (*application.ProfileService)(nil)
)
