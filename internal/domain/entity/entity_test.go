package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHasher struct {
	calls int
	err   error
}

func (s *stubHasher) Hash(_ context.Context, plain string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "hashed:" + plain, nil
}

func TestBeforeSaveUser(t *testing.T) {
	h := &stubHasher{}
	u := &User{Email: "  Jane.Doe@Example.COM ", Name: "  Jane  "}

	require.NoError(t, BeforeSaveUser(context.Background(), u, "correct-horse", h))

	assert.Equal(t, "jane.doe@example.com", u.Email)
	assert.Equal(t, "Jane", u.Name)
	assert.Equal(t, RoleCustomer, u.Role)
	assert.Equal(t, "hashed:correct-horse", u.Password)
	assert.Equal(t, 1, h.calls)
}

func TestBeforeSaveUser_KeepsHashWithoutNewPassword(t *testing.T) {
	h := &stubHasher{}
	u := &User{Email: "a@b.c", Name: "Al", Role: RoleAdmin, Password: "existing"}

	require.NoError(t, BeforeSaveUser(context.Background(), u, "", h))

	assert.Equal(t, "existing", u.Password)
	assert.Equal(t, RoleAdmin, u.Role)
	assert.Zero(t, h.calls)
}

func TestBeforeSaveUser_HashError(t *testing.T) {
	h := &stubHasher{err: errors.New("cancelled")}
	err := BeforeSaveUser(context.Background(), &User{}, "secret-pass", h)
	assert.EqualError(t, err, "cancelled")
}

func TestUserPatch(t *testing.T) {
	name := "New Name"
	pwd := "new-password"
	verified := true
	u := &User{Name: "Old", Email: "old@x.io"}

	assert.True(t, UserPatch{}.Empty())

	p := UserPatch{Name: &name, Password: &pwd, IsEmailVerified: &verified}
	assert.False(t, p.Empty())
	got := p.Apply(u)

	assert.Equal(t, "new-password", got)
	assert.Equal(t, "New Name", u.Name)
	assert.Equal(t, "old@x.io", u.Email)
	assert.True(t, u.IsEmailVerified)
}

func TestPublicOmitsSecrets(t *testing.T) {
	u := &User{ID: "1", Email: "a@b.c", Password: "hash", RefreshTokenHash: "r", PasswordResetTokenHash: "p"}
	pub := u.Public()
	assert.Equal(t, "1", pub.ID)
	assert.Equal(t, "a@b.c", pub.Email)
}

func TestBeforeSaveProfile_DemotesExtraDefaults(t *testing.T) {
	tests := []struct {
		name     string
		defaults []bool
		want     []bool
	}{
		{"none", []bool{false, false}, []bool{false, false}},
		{"single", []bool{false, true, false}, []bool{false, true, false}},
		{"first wins", []bool{true, true, true}, []bool{true, false, false}},
		{"first default not at index zero", []bool{false, true, true}, []bool{false, true, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Profile{FirstName: "Jane"}
			for _, d := range tt.defaults {
				p.Addresses = append(p.Addresses, Address{IsDefault: d})
			}
			BeforeSaveProfile(p)

			got := make([]bool, 0, len(p.Addresses))
			for _, a := range p.Addresses {
				got = append(got, a.IsDefault)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBeforeSaveProfile_Defaults(t *testing.T) {
	p := &Profile{FirstName: " Jane ", Addresses: []Address{{City: " Pune "}}}
	BeforeSaveProfile(p)

	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, UnitMetric, p.Measurements.Unit)
	assert.Equal(t, AddressHome, p.Addresses[0].Type)
	assert.Equal(t, DefaultCountry, p.Addresses[0].Country)
	assert.Equal(t, "Pune", p.Addresses[0].City)
}

func TestProfileHelpers(t *testing.T) {
	p := &Profile{FirstName: "Jane"}
	assert.Equal(t, "Jane", p.FullName())
	assert.Nil(t, p.DefaultAddress())

	p.LastName = "Doe"
	p.Addresses = []Address{{ID: "a"}, {ID: "b", IsDefault: true}}
	assert.Equal(t, "Jane Doe", p.FullName())
	require.NotNil(t, p.DefaultAddress())
	assert.Equal(t, "b", p.DefaultAddress().ID)
}
