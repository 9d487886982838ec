package application

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	repo "github.com/oksasatya/anaqa-user-service/internal/domain/repository"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

// ProfileService manages the profile sub-resource of a user.
type ProfileService struct {
	users    repo.UserRepository
	profiles repo.ProfileRepository
	avatars  AvatarUploader // nil when uploads are disabled
	auditor  *Auditor
	log      logrus.FieldLogger
}

func NewProfileService(users repo.UserRepository, profiles repo.ProfileRepository, avatars AvatarUploader, auditor *Auditor, log logrus.FieldLogger) *ProfileService {
	if log == nil {
		log = helpers.NewNopLogger()
	}
	return &ProfileService{users: users, profiles: profiles, avatars: avatars, auditor: auditor, log: log}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*entity.Profile, error) {
	p, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NotFound("Profile", userID)
	}
	return p, nil
}

// SaveProfile creates or replaces the user's profile. Server-managed fields
// (id, avatar, timestamps) are kept from the stored profile and addresses
// without an id get one.
func (s *ProfileService) SaveProfile(ctx context.Context, userID string, in entity.Profile) (*entity.Profile, error) {
	if _, err := s.users.FindByIDOrFail(ctx, userID); err != nil {
		return nil, err
	}
	cur, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	in.UserID = userID
	if cur != nil {
		in.ID = cur.ID
		in.AvatarURL = cur.AvatarURL
		in.CreatedAt = cur.CreatedAt
	}
	for i := range in.Addresses {
		if in.Addresses[i].ID == "" {
			in.Addresses[i].ID = uuid.NewString()
		}
	}
	if err := s.profiles.Save(ctx, &in); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionProfileSaved, ActorID: userID, SubjectID: userID})
	return &in, nil
}

// DeleteProfile removes the user's profile. The account itself stays.
func (s *ProfileService) DeleteProfile(ctx context.Context, userID string) error {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return err
	}
	if err := s.profiles.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionProfileDeleted, ActorID: userID, SubjectID: userID})
	return nil
}

// AddAddress appends an address. The first address of a profile becomes the
// default; a new default demotes the previous one.
func (s *ProfileService) AddAddress(ctx context.Context, userID string, a entity.Address) (*entity.Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	a.ID = uuid.NewString()
	if len(p.Addresses) == 0 {
		a.IsDefault = true
	}
	if a.IsDefault {
		for i := range p.Addresses {
			p.Addresses[i].IsDefault = false
		}
	}
	p.Addresses = append(p.Addresses, a)
	return s.save(ctx, p)
}

// RemoveAddress deletes an address. Removing the default promotes the first
// remaining address.
func (s *ProfileService) RemoveAddress(ctx context.Context, userID, addressID string) (*entity.Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := indexOfAddress(p.Addresses, addressID)
	if idx < 0 {
		return nil, apperror.NotFound("Address", addressID)
	}
	wasDefault := p.Addresses[idx].IsDefault
	p.Addresses = append(p.Addresses[:idx], p.Addresses[idx+1:]...)
	if wasDefault && len(p.Addresses) > 0 {
		p.Addresses[0].IsDefault = true
	}
	return s.save(ctx, p)
}

// SetDefaultAddress makes addressID the only default address.
func (s *ProfileService) SetDefaultAddress(ctx context.Context, userID, addressID string) (*entity.Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := indexOfAddress(p.Addresses, addressID)
	if idx < 0 {
		return nil, apperror.NotFound("Address", addressID)
	}
	for i := range p.Addresses {
		p.Addresses[i].IsDefault = i == idx
	}
	return s.save(ctx, p)
}

// UploadAvatar stores the image and records its URL on the profile.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID, filename, contentType string, r io.Reader) (*entity.Profile, error) {
	if s.avatars == nil {
		return nil, apperror.Forbidden("Avatar upload is disabled")
	}
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	url, err := s.avatars.Upload(ctx, userID, filename, contentType, r)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("avatar upload failed")
		return nil, apperror.Internal(err)
	}
	p.AvatarURL = url
	if err := s.profiles.Save(ctx, p); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionAvatarUploaded, ActorID: userID, SubjectID: userID})
	return p, nil
}

func (s *ProfileService) save(ctx context.Context, p *entity.Profile) (*entity.Profile, error) {
	if err := s.profiles.Save(ctx, p); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionProfileSaved, ActorID: p.UserID, SubjectID: p.UserID})
	return p, nil
}

func indexOfAddress(list []entity.Address, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
