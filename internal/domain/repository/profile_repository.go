package repository

import (
	"context"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
)

// ProfileRepository persists the one-to-one user profile.
type ProfileRepository interface {
	// FindByUserID returns (nil, nil) when the user has no profile yet.
	FindByUserID(ctx context.Context, userID string) (*entity.Profile, error)
	// Save upserts by user id after running BeforeSaveProfile.
	Save(ctx context.Context, p *entity.Profile) error
	DeleteByUserID(ctx context.Context, userID string) error
}
