package application

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

const uid = "11111111-1111-1111-1111-111111111111"

func newProfileService(users *mockUserRepo, profiles *mockProfileRepo, up AvatarUploader) *ProfileService {
	log := helpers.NewNopLogger()
	return NewProfileService(users, profiles, up, NewAuditor(log, nil), log)
}

func stored(addrs ...entity.Address) *entity.Profile {
	return &entity.Profile{ID: "p1", UserID: uid, FirstName: "Jane", AvatarURL: "https://cdn/a.png", Addresses: addrs}
}

func defaults(p *entity.Profile) []bool {
	out := make([]bool, len(p.Addresses))
	for i, a := range p.Addresses {
		out[i] = a.IsDefault
	}
	return out
}

func TestGetProfile_Missing(t *testing.T) {
	profiles := &mockProfileRepo{}
	profiles.On("FindByUserID", mock.Anything, uid).Return(nil, nil)

	_, err := newProfileService(&mockUserRepo{}, profiles, nil).GetProfile(context.Background(), uid)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestSaveProfile_KeepsServerFields(t *testing.T) {
	users, profiles := &mockUserRepo{}, &mockProfileRepo{}
	users.On("FindByIDOrFail", mock.Anything, uid).Return(storedUser(), nil)
	profiles.On("FindByUserID", mock.Anything, uid).Return(stored(), nil)
	profiles.On("Save", mock.Anything, mock.Anything).Return(nil)

	in := entity.Profile{
		UserID:    "someone-else",
		AvatarURL: "https://evil/x.png",
		FirstName: "Janet",
		Addresses: []entity.Address{{City: "Pune"}},
	}
	got, err := newProfileService(users, profiles, nil).SaveProfile(context.Background(), uid, in)
	require.NoError(t, err)
	assert.Equal(t, uid, got.UserID)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, "https://cdn/a.png", got.AvatarURL)
	assert.NotEmpty(t, got.Addresses[0].ID)
}

func TestSaveProfile_UnknownUser(t *testing.T) {
	users := &mockUserRepo{}
	users.On("FindByIDOrFail", mock.Anything, "nope").Return(nil, apperror.NotFound("User", "nope"))

	_, err := newProfileService(users, &mockProfileRepo{}, nil).SaveProfile(context.Background(), "nope", entity.Profile{})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestAddresses(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		have []entity.Address
		run  func(s *ProfileService) (*entity.Profile, error)
		want []bool
		kind apperror.Kind
	}{
		{
			name: "first address becomes default",
			run: func(s *ProfileService) (*entity.Profile, error) {
				return s.AddAddress(ctx, uid, entity.Address{City: "Pune"})
			},
			want: []bool{true},
		},
		{
			name: "new default demotes the old one",
			have: []entity.Address{{ID: "a", IsDefault: true}},
			run: func(s *ProfileService) (*entity.Profile, error) {
				return s.AddAddress(ctx, uid, entity.Address{City: "Goa", IsDefault: true})
			},
			want: []bool{false, true},
		},
		{
			name: "non default add keeps the old default",
			have: []entity.Address{{ID: "a", IsDefault: true}},
			run: func(s *ProfileService) (*entity.Profile, error) {
				return s.AddAddress(ctx, uid, entity.Address{City: "Goa"})
			},
			want: []bool{true, false},
		},
		{
			name: "removing the default promotes the first remaining",
			have: []entity.Address{{ID: "a", IsDefault: true}, {ID: "b"}, {ID: "c"}},
			run: func(s *ProfileService) (*entity.Profile, error) {
				return s.RemoveAddress(ctx, uid, "a")
			},
			want: []bool{true, false},
		},
		{
			name: "set default",
			have: []entity.Address{{ID: "a", IsDefault: true}, {ID: "b"}},
			run: func(s *ProfileService) (*entity.Profile, error) {
				return s.SetDefaultAddress(ctx, uid, "b")
			},
			want: []bool{false, true},
		},
		{
			name: "unknown address",
			have: []entity.Address{{ID: "a"}},
			run: func(s *ProfileService) (*entity.Profile, error) {
				return s.SetDefaultAddress(ctx, uid, "zzz")
			},
			kind: apperror.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := &mockProfileRepo{}
			profiles.On("FindByUserID", mock.Anything, uid).Return(stored(tt.have...), nil)
			profiles.On("Save", mock.Anything, mock.Anything).Return(nil)

			got, err := tt.run(newProfileService(&mockUserRepo{}, profiles, nil))
			if tt.want == nil {
				require.Error(t, err)
				assert.Equal(t, tt.kind, apperror.KindOf(err))
				profiles.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, defaults(got))
			for _, a := range got.Addresses {
				assert.NotEmpty(t, a.ID)
			}
		})
	}
}

func TestDeleteProfile(t *testing.T) {
	profiles := &mockProfileRepo{}
	profiles.On("FindByUserID", mock.Anything, uid).Return(stored(), nil)
	profiles.On("DeleteByUserID", mock.Anything, uid).Return(nil)

	require.NoError(t, newProfileService(&mockUserRepo{}, profiles, nil).DeleteProfile(context.Background(), uid))
	profiles.AssertExpectations(t)
}

func TestUploadAvatar(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		_, err := newProfileService(&mockUserRepo{}, &mockProfileRepo{}, nil).
			UploadAvatar(context.Background(), uid, "me.png", "image/png", strings.NewReader("img"))
		assert.True(t, apperror.Is(err, apperror.KindForbidden))
	})

	t.Run("stores url on profile", func(t *testing.T) {
		profiles := &mockProfileRepo{}
		profiles.On("FindByUserID", mock.Anything, uid).Return(stored(), nil)
		profiles.On("Save", mock.Anything, mock.Anything).Return(nil)
		up := &fakeUploader{url: "https://storage.googleapis.com/bucket"}

		got, err := newProfileService(&mockUserRepo{}, profiles, up).
			UploadAvatar(context.Background(), uid, "Me.PNG", "image/png", strings.NewReader("img"))
		require.NoError(t, err)
		assert.Equal(t, "https://storage.googleapis.com/bucket/"+uid+"/me.png", got.AvatarURL)
		assert.Equal(t, "img", up.body)
	})
}
