package application

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
	"github.com/oksasatya/anaqa-user-service/pkg/mailer"
	tpl "github.com/oksasatya/anaqa-user-service/pkg/mailer/templates"
)

func isDigest(s string) bool { return len(s) == 64 }

func TestAuthenticateUser(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		setup    func(m *mockUserRepo)
		wantKind apperror.Kind
		wantMsg  string
		wantOK   bool
	}{
		{
			name:     "unknown email",
			email:    "ghost@example.com",
			password: "password123",
			setup: func(m *mockUserRepo) {
				m.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)
			},
			wantKind: apperror.KindNotFound,
			wantMsg:  "User with identifier 'ghost@example.com' not found",
		},
		{
			name:     "wrong password",
			email:    "jane@example.com",
			password: "nope-nope",
			setup: func(m *mockUserRepo) {
				m.On("FindByEmail", mock.Anything, "jane@example.com").Return(storedUser(), nil)
			},
			wantKind: apperror.KindUnauthorized,
			wantMsg:  "Invalid credentials",
		},
		{
			name:     "ok and email is normalized",
			email:    " JANE@example.com ",
			password: "password123",
			setup: func(m *mockUserRepo) {
				m.On("FindByEmail", mock.Anything, "jane@example.com").Return(storedUser(), nil)
				m.On("UpdateLastLogin", mock.Anything, storedUser().ID, mock.AnythingOfType("time.Time")).Return(nil)
			},
			wantOK: true,
		},
		{
			name:     "last login failure does not fail authentication",
			email:    "jane@example.com",
			password: "password123",
			setup: func(m *mockUserRepo) {
				m.On("FindByEmail", mock.Anything, "jane@example.com").Return(storedUser(), nil)
				m.On("UpdateLastLogin", mock.Anything, storedUser().ID, mock.AnythingOfType("time.Time")).Return(errors.New("timeout"))
			},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockUserRepo{}
			tt.setup(m)
			svc := newFixture(t, m, nil).svc

			got, err := svc.AuthenticateUser(context.Background(), tt.email, tt.password)
			if !tt.wantOK {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperror.KindOf(err))
				assert.Equal(t, tt.wantMsg, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "jane@example.com", got.Email)
			m.AssertExpectations(t)
		})
	}
}

func TestLogin_IssuesTokensAndStoresRefreshDigest(t *testing.T) {
	m := &mockUserRepo{}
	u := storedUser()
	m.On("FindByEmail", mock.Anything, u.Email).Return(u, nil)
	m.On("UpdateLastLogin", mock.Anything, u.ID, mock.AnythingOfType("time.Time")).Return(nil)
	m.On("SetRefreshToken", mock.Anything, u.ID, mock.MatchedBy(isDigest)).Return(nil)
	f := newFixture(t, m, nil)

	res, err := f.svc.Login(context.Background(), u.Email, "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.NotNil(t, res.User.LastLoginAt)
	m.AssertCalled(t, "SetRefreshToken", mock.Anything, u.ID, helpers.HashToken(res.Tokens.RefreshToken))
}

func TestLogin_UnknownEmailIsInvalidCredentials(t *testing.T) {
	m := &mockUserRepo{}
	m.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)

	_, err := newFixture(t, m, nil).svc.Login(context.Background(), "ghost@example.com", "password123")
	require.Error(t, err)
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	m := &mockUserRepo{}
	u := storedUser()
	m.On("FindByEmail", mock.Anything, u.Email).Return(u, nil)
	svc := newFixture(t, m, nil).svc // guard allows 3 attempts

	for i := 0; i < 3; i++ {
		_, err := svc.Login(context.Background(), u.Email, "wrong-password")
		require.Error(t, err)
		assert.Equal(t, "Invalid credentials", err.Error())
	}

	_, err := svc.Login(context.Background(), u.Email, "password123")
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindUnauthorized, ae.Kind)
	assert.Equal(t, 60, ae.Context["retryAfterSeconds"])
	m.AssertNumberOfCalls(t, "FindByEmail", 3)
}

func TestRefresh(t *testing.T) {
	jwt := helpers.NewJWTManager("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "rrrrrrrrrrrrrrrrrrrrrrrrrrrrrrrr", time.Minute, time.Hour)
	u := storedUser()

	t.Run("rotates", func(t *testing.T) {
		pair, err := jwt.GeneratePair(u.ID, string(u.Role))
		require.NoError(t, err)

		m := &mockUserRepo{}
		m.On("FindByRefreshToken", mock.Anything, helpers.HashToken(pair.RefreshToken)).Return(u, nil)
		m.On("SetRefreshToken", mock.Anything, u.ID, mock.MatchedBy(isDigest)).Return(nil)

		res, err := newFixture(t, m, nil).svc.Refresh(context.Background(), pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken, res.Tokens.RefreshToken)
		assert.Equal(t, u.ID, res.User.ID)
	})

	t.Run("reuse revokes the session", func(t *testing.T) {
		pair, err := jwt.GeneratePair(u.ID, string(u.Role))
		require.NoError(t, err)

		m := &mockUserRepo{}
		m.On("FindByRefreshToken", mock.Anything, helpers.HashToken(pair.RefreshToken)).Return(nil, nil)
		m.On("SetRefreshToken", mock.Anything, u.ID, "").Return(nil)

		_, err = newFixture(t, m, nil).svc.Refresh(context.Background(), pair.RefreshToken)
		assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
		m.AssertCalled(t, "SetRefreshToken", mock.Anything, u.ID, "")
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := newFixture(t, &mockUserRepo{}, nil).svc.Refresh(context.Background(), "not-a-jwt")
		assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		pair, err := jwt.GeneratePair(u.ID, string(u.Role))
		require.NoError(t, err)
		_, err = newFixture(t, &mockUserRepo{}, nil).svc.Refresh(context.Background(), pair.AccessToken)
		assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
	})
}

func tokenFrom(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)
	return tok
}

func mailJobs(p *capturePublisher) []mailer.EmailJob {
	var out []mailer.EmailJob
	for _, m := range p.all() {
		if j, ok := m.(mailer.EmailJob); ok {
			out = append(out, j)
		}
	}
	return out
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	u := storedUser()

	t.Run("unknown email is silent", func(t *testing.T) {
		m := &mockUserRepo{}
		m.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)
		f := newFixture(t, m, nil)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "Ghost@Example.com", RequestMeta{}))
		assert.Empty(t, mailJobs(f.mail))
	})

	t.Run("request then reset", func(t *testing.T) {
		m := &mockUserRepo{}
		m.On("FindByEmail", mock.Anything, u.Email).Return(u, nil)
		m.On("SetResetToken", mock.Anything, u.ID, mock.MatchedBy(isDigest), mock.AnythingOfType("time.Time")).Return(nil)
		f := newFixture(t, m, nil)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, u.Email, RequestMeta{IP: "10.0.0.1", UserAgent: "curl"}))
		jobs := mailJobs(f.mail)
		require.Len(t, jobs, 1)
		assert.Equal(t, tpl.PasswordReset, jobs[0].Template)
		assert.Equal(t, u.Email, jobs[0].To)
		assert.Equal(t, "10.0.0.1", jobs[0].Data["IP"])

		tok := tokenFrom(t, jobs[0].Data["ResetURL"].(string))
		m.AssertCalled(t, "SetResetToken", mock.Anything, u.ID, helpers.HashToken(tok), mock.AnythingOfType("time.Time"))

		m.On("FindByResetToken", mock.Anything, helpers.HashToken(tok), mock.AnythingOfType("time.Time")).Return(u, nil)
		m.On("ResetPassword", mock.Anything, u.ID, "brand-new-pass").Return(nil)
		require.NoError(t, f.svc.ResetPassword(ctx, tok, "brand-new-pass", RequestMeta{}))

		jobs = mailJobs(f.mail)
		require.Len(t, jobs, 2)
		assert.Equal(t, tpl.PasswordChanged, jobs[1].Template)
	})

	t.Run("expired or unknown token", func(t *testing.T) {
		m := &mockUserRepo{}
		m.On("FindByResetToken", mock.Anything, helpers.HashToken("stale"), mock.AnythingOfType("time.Time")).Return(nil, nil)
		err := newFixture(t, m, nil).svc.ResetPassword(ctx, "stale", "brand-new-pass", RequestMeta{})
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	u := storedUser()

	m := &mockUserRepo{}
	m.On("FindByIDOrFail", mock.Anything, u.ID).Return(u, nil)
	m.On("ResetPassword", mock.Anything, u.ID, "brand-new-pass").Return(nil)
	f := newFixture(t, m, nil)

	err := f.svc.ChangePassword(ctx, u.ID, "wrong-current", "brand-new-pass", RequestMeta{})
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
	m.AssertNotCalled(t, "ResetPassword", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, "password123", "brand-new-pass", RequestMeta{}))
	m.AssertCalled(t, "ResetPassword", mock.Anything, u.ID, "brand-new-pass")
}

func TestEmailVerificationFlow(t *testing.T) {
	ctx := context.Background()
	u := storedUser()

	m := &mockUserRepo{}
	m.On("FindByIDOrFail", mock.Anything, u.ID).Return(u, nil)
	verified := *u
	verified.IsEmailVerified = true
	yes := true
	m.On("Update", mock.Anything, u.ID, entity.UserPatch{IsEmailVerified: &yes}).Return(&verified, nil)
	f := newFixture(t, m, nil)

	already, err := f.svc.RequestEmailVerification(ctx, u.ID, RequestMeta{})
	require.NoError(t, err)
	assert.False(t, already)

	jobs := mailJobs(f.mail)
	require.Len(t, jobs, 1)
	assert.Equal(t, tpl.VerifyEmail, jobs[0].Template)
	tok := tokenFrom(t, jobs[0].Data["VerifyURL"].(string))

	got, err := f.svc.ConfirmEmailVerification(ctx, tok)
	require.NoError(t, err)
	assert.True(t, got.IsEmailVerified)

	// tokens are single use
	_, err = f.svc.ConfirmEmailVerification(ctx, tok)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestRequestEmailVerification_AlreadyVerified(t *testing.T) {
	u := storedUser()
	u.IsEmailVerified = true
	m := &mockUserRepo{}
	m.On("FindByIDOrFail", mock.Anything, u.ID).Return(u, nil)
	f := newFixture(t, m, nil)

	already, err := f.svc.RequestEmailVerification(context.Background(), u.ID, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, already)
	assert.Empty(t, mailJobs(f.mail))
}

func TestWithToken(t *testing.T) {
	assert.Equal(t, "https://app.example/reset?token=abc", withToken("https://app.example/reset", "abc"))
	assert.Equal(t, "https://app.example/v?lang=en&token=abc", withToken("https://app.example/v?lang=en", "abc"))
}
