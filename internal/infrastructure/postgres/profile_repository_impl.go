package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	"github.com/oksasatya/anaqa-user-service/internal/domain/repository"
)

// ProfileRepository stores profiles with the nested documents in JSONB columns.
type ProfileRepository struct {
	db Conner
}

func NewProfileRepository(db Conner) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*entity.Profile, error) {
	if !validID(userID) {
		return nil, nil
	}
	db, err := r.db.Conn()
	if err != nil {
		return nil, err
	}
	p := &entity.Profile{}
	var gender string
	err = db.QueryRow(ctx, `
		SELECT id, user_id, avatar_url, first_name, last_name, date_of_birth, gender, phone,
		       addresses, size_profile, social_media, preferences, measurements, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(&p.ID, &p.UserID, &p.AvatarURL, &p.FirstName, &p.LastName, &p.DateOfBirth, &gender, &p.Phone,
		&p.Addresses, &p.SizeProfile, &p.SocialMedia, &p.Preferences, &p.Measurements, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	p.Gender = entity.Gender(gender)
	return p, nil
}

func (r *ProfileRepository) Save(ctx context.Context, p *entity.Profile) error {
	entity.BeforeSaveProfile(p)

	db, err := r.db.Conn()
	if err != nil {
		return err
	}
	err = db.QueryRow(ctx, `
		INSERT INTO profiles (user_id, avatar_url, first_name, last_name, date_of_birth, gender, phone,
		                      addresses, size_profile, social_media, preferences, measurements)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			avatar_url = EXCLUDED.avatar_url,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			date_of_birth = EXCLUDED.date_of_birth,
			gender = EXCLUDED.gender,
			phone = EXCLUDED.phone,
			addresses = EXCLUDED.addresses,
			size_profile = EXCLUDED.size_profile,
			social_media = EXCLUDED.social_media,
			preferences = EXCLUDED.preferences,
			measurements = EXCLUDED.measurements,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`, p.UserID, p.AvatarURL, p.FirstName, p.LastName, p.DateOfBirth, string(p.Gender), p.Phone,
		p.Addresses, p.SizeProfile, p.SocialMedia, p.Preferences, p.Measurements,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if !validID(userID) {
		return nil
	}
	db, err := r.db.Conn()
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)
