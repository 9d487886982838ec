package application

import (
	"context"
	"errors"
	"math"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
	"github.com/oksasatya/anaqa-user-service/pkg/mailer"
	tpl "github.com/oksasatya/anaqa-user-service/pkg/mailer/templates"
)

const tokenBytes = 32

const (
	errInvalidCredentials = "Invalid credentials"
	errInvalidToken       = "Invalid or expired token"
)

// LoginResult is an authenticated user with a fresh token pair.
type LoginResult struct {
	User   entity.PublicUser `json:"user"`
	Tokens helpers.TokenPair `json:"tokens"`
}

// AuthenticateUser checks an email/password pair. It returns NotFound when no
// user has the email and Unauthorized when the password is wrong. On success
// the last login time is recorded best-effort.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (entity.PublicUser, error) {
	u, err := s.authenticate(ctx, entity.NormalizeEmail(email), password)
	if err != nil {
		return entity.PublicUser{}, err
	}
	return u.Public(), nil
}

func (s *UserService) authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("User", email)
	}
	if err := s.hasher.Compare(ctx, u.Password, password); err != nil {
		if errors.Is(err, helpers.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(errInvalidCredentials)
		}
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, u.ID, now); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("record last login failed")
	} else {
		u.LastLoginAt = &now
	}
	return u, nil
}

// Login authenticates and issues a token pair. Unknown emails and wrong
// passwords both answer "Invalid credentials"; wrong passwords count toward
// the lockout.
func (s *UserService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = entity.NormalizeEmail(email)

	left, err := s.guard.Locked(ctx, email)
	if err != nil {
		s.log.WithError(err).Warn("login guard unavailable, skipping lockout check")
	} else if left > 0 {
		return LoginResult{}, apperror.Unauthorized("Too many failed login attempts, try again later").
			WithContext("retryAfterSeconds", int(math.Ceil(left.Seconds())))
	}

	u, err := s.authenticate(ctx, email, password)
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		return LoginResult{}, apperror.Unauthorized(errInvalidCredentials)
	case apperror.Is(err, apperror.KindUnauthorized):
		s.recordFailure(ctx, email)
		return LoginResult{}, err
	case err != nil:
		return LoginResult{}, err
	}

	if err := s.guard.Reset(ctx, email); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("reset login guard failed")
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionLogin, ActorID: u.ID, SubjectID: u.ID})
	return LoginResult{User: u.Public(), Tokens: pair}, nil
}

func (s *UserService) recordFailure(ctx context.Context, email string) {
	locked, err := s.guard.Fail(ctx, email)
	if err != nil {
		s.log.WithError(err).Warn("record failed login failed")
		return
	}
	action := ActionLoginFailed
	if locked {
		action = ActionLoginLocked
	}
	s.log.WithFields(logrus.Fields{"audit": action, "locked": locked}).Warn("failed login")
}

// issue signs a token pair and stores the refresh token digest, replacing
// any previous one.
func (s *UserService) issue(ctx context.Context, u *entity.User) (helpers.TokenPair, error) {
	pair, err := s.tokens.GeneratePair(u.ID, string(u.Role))
	if err != nil {
		return helpers.TokenPair{}, apperror.Internal(err)
	}
	if err := s.repo.SetRefreshToken(ctx, u.ID, helpers.HashToken(pair.RefreshToken)); err != nil {
		return helpers.TokenPair{}, err
	}
	return pair, nil
}

// Refresh rotates the refresh token. A token with a valid signature that is
// no longer the stored one revokes the user's session.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return LoginResult{}, apperror.Unauthorized("Invalid refresh token")
	}
	u, err := s.repo.FindByRefreshToken(ctx, helpers.HashToken(refreshToken))
	if err != nil {
		return LoginResult{}, err
	}
	if u == nil || u.ID != claims.UserID {
		s.log.WithField("user_id", claims.UserID).Warn("refresh token reuse detected, revoking session")
		if err := s.repo.SetRefreshToken(ctx, claims.UserID, ""); err != nil && !apperror.Is(err, apperror.KindNotFound) {
			s.log.WithError(err).WithField("user_id", claims.UserID).Warn("revoke session failed")
		}
		return LoginResult{}, apperror.Unauthorized("Invalid refresh token")
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: u.Public(), Tokens: pair}, nil
}

// Logout forgets the stored refresh token.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.repo.SetRefreshToken(ctx, userID, ""); err != nil {
		return err
	}
	s.auditor.Record(ctx, AuditEvent{Action: ActionLogout, ActorID: userID, SubjectID: userID})
	return nil
}

// RequestPasswordReset emails a reset link. Unknown emails succeed silently.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string, meta RequestMeta) error {
	u, err := s.repo.FindByEmail(ctx, entity.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if u == nil {
		s.log.Debug("password reset requested for unknown email")
		return nil
	}

	tok, err := helpers.GenToken(tokenBytes)
	if err != nil {
		return apperror.Internal(err)
	}
	ttl := s.settings.PasswordResetTTL
	if err := s.repo.SetResetToken(ctx, u.ID, helpers.HashToken(tok), s.now().Add(ttl)); err != nil {
		return err
	}

	link := withToken(s.settings.ResetPasswordURL, tok)
	data := tpl.NewPasswordResetData(s.settings.AppName, u.Name, u.Email, link,
		tpl.WithTime(s.now()), tpl.WithExpiresIn(ttl), tpl.WithIP(meta.IP), tpl.WithUserAgent(meta.UserAgent))
	s.enqueueMail(ctx, u.ID, mailer.EmailJob{To: u.Email, Template: tpl.PasswordReset, Data: data})
	s.auditor.Record(ctx, AuditEvent{Action: ActionPasswordResetRequest, ActorID: u.ID, SubjectID: u.ID})
	return nil
}

// ResetPassword consumes a reset token and sets a new password. Every
// session of the user is revoked.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	u, err := s.repo.FindByResetToken(ctx, helpers.HashToken(token), s.now())
	if err != nil {
		return err
	}
	if u == nil {
		return apperror.Validation(errInvalidToken)
	}
	if err := s.repo.ResetPassword(ctx, u.ID, newPassword); err != nil {
		return err
	}
	if err := s.guard.Reset(ctx, u.Email); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("reset login guard failed")
	}
	s.passwordChanged(ctx, u, meta)
	s.auditor.Record(ctx, AuditEvent{Action: ActionPasswordReset, ActorID: u.ID, SubjectID: u.ID})
	return nil
}

// ChangePassword replaces the password of a signed-in user after checking
// the current one. Every session of the user is revoked.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string, meta RequestMeta) error {
	u, err := s.repo.FindByIDOrFail(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(ctx, u.Password, current); err != nil {
		if errors.Is(err, helpers.ErrPasswordMismatch) {
			return apperror.Unauthorized("Current password is incorrect")
		}
		return err
	}
	if err := s.repo.ResetPassword(ctx, u.ID, next); err != nil {
		return err
	}
	s.passwordChanged(ctx, u, meta)
	s.auditor.Record(ctx, AuditEvent{Action: ActionPasswordChanged, ActorID: u.ID, SubjectID: u.ID})
	return nil
}

func (s *UserService) passwordChanged(ctx context.Context, u *entity.User, meta RequestMeta) {
	data := tpl.NewPasswordChangedData(s.settings.AppName, u.Name, u.Email,
		tpl.WithTime(s.now()), tpl.WithIP(meta.IP), tpl.WithUserAgent(meta.UserAgent))
	s.enqueueMail(ctx, u.ID, mailer.EmailJob{To: u.Email, Template: tpl.PasswordChanged, Data: data})
}

// RequestEmailVerification emails a verification link to the user. It
// reports true without sending anything when the email is already verified.
func (s *UserService) RequestEmailVerification(ctx context.Context, userID string, meta RequestMeta) (alreadyVerified bool, err error) {
	u, err := s.repo.FindByIDOrFail(ctx, userID)
	if err != nil {
		return false, err
	}
	if u.IsEmailVerified {
		return true, nil
	}

	tok, err := helpers.GenToken(tokenBytes)
	if err != nil {
		return false, apperror.Internal(err)
	}
	ttl := s.settings.EmailVerifyTTL
	if err := s.verify.Put(ctx, helpers.HashToken(tok), u.ID, ttl); err != nil {
		return false, err
	}

	link := withToken(s.settings.VerifyEmailURL, tok)
	data := tpl.NewVerifyEmailData(s.settings.AppName, u.Name, u.Email, link,
		tpl.WithTime(s.now()), tpl.WithExpiresIn(ttl), tpl.WithIP(meta.IP), tpl.WithUserAgent(meta.UserAgent))
	s.enqueueMail(ctx, u.ID, mailer.EmailJob{To: u.Email, Template: tpl.VerifyEmail, Data: data})
	s.auditor.Record(ctx, AuditEvent{Action: ActionVerificationRequested, ActorID: u.ID, SubjectID: u.ID})
	return false, nil
}

// ConfirmEmailVerification consumes a verification token.
func (s *UserService) ConfirmEmailVerification(ctx context.Context, token string) (entity.PublicUser, error) {
	uid, ok, err := s.verify.Take(ctx, helpers.HashToken(token))
	if err != nil {
		return entity.PublicUser{}, err
	}
	if !ok {
		return entity.PublicUser{}, apperror.Validation(errInvalidToken)
	}
	return s.VerifyEmail(ctx, uid, uid)
}

// withToken appends ?token=... (or &token=...) to base.
func withToken(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
